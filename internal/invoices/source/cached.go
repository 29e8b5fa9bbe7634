package source

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/invoice-insights/internal/platform/cache"
)

// CachedSource caches List pages under their logical request key. Successful
// mutations bump the cache version so the next fetch reloads.
type CachedSource struct {
	next   Source
	cache  *cache.Versioned
	logger *slog.Logger
}

// NewCachedSource wraps next. A nil cache makes it a pass-through.
func NewCachedSource(next Source, c *cache.Versioned, logger *slog.Logger) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{next: next, cache: c, logger: logger}
}

// List serves from cache when possible. Cache failures degrade to a direct fetch.
func (s *CachedSource) List(ctx context.Context, req ListRequest) (Page, error) {
	req = req.Normalized()
	key, err := s.cache.BuildKey(ctx, "list", req.Key())
	if err != nil {
		s.logger.Warn("invoice cache key", slog.Any("error", err))
		return s.next.List(ctx, req)
	}

	var (
		loaded  bool
		loadErr error
		fresh   Page
		page    Page
	)
	_, err = s.cache.FetchJSON(ctx, key, &page, func(ctx context.Context) (any, error) {
		loaded = true
		fresh, loadErr = s.next.List(ctx, req)
		return fresh, loadErr
	})
	if err == nil {
		return page, nil
	}
	if loadErr != nil {
		return Page{}, loadErr
	}
	s.logger.Warn("invoice cache fetch", slog.String("key", key), slog.Any("error", err))
	if loaded {
		return fresh, nil
	}
	return s.next.List(ctx, req)
}

// Approve delegates and invalidates.
func (s *CachedSource) Approve(ctx context.Context, id string) error {
	if err := s.next.Approve(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, "approve", id)
	return nil
}

// Reject delegates and invalidates.
func (s *CachedSource) Reject(ctx context.Context, id, reason string) error {
	if err := s.next.Reject(ctx, id, reason); err != nil {
		return err
	}
	s.invalidate(ctx, "reject", id)
	return nil
}

// Delete delegates and invalidates.
func (s *CachedSource) Delete(ctx context.Context, id string) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, "delete", id)
	return nil
}

// Invalidate drops every cached page.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	_, err := s.cache.Bump(ctx)
	return err
}

func (s *CachedSource) invalidate(ctx context.Context, op, id string) {
	if _, err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("invoice cache bump", slog.String("op", op), slog.String("uuid", id), slog.Any("error", err))
	}
}
