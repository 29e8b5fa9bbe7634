// Package insights coordinates invoice fetches with the stats aggregator and
// the table filter.
package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/invoice-insights/internal/invoices"
	"github.com/odyssey-erp/invoice-insights/internal/invoices/source"
	"github.com/odyssey-erp/invoice-insights/internal/invoices/stats"
	"github.com/odyssey-erp/invoice-insights/internal/invoices/table"
	"github.com/odyssey-erp/invoice-insights/internal/shared"
)

// Invalidator drops cached invoice pages. *source.CachedSource satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// StatsObserver records stats computations. *observability.Metrics satisfies it.
type StatsObserver interface {
	ObserveStatsBuild(outcome string, invoices int)
}

// Options tunes how stats fetch their input.
type Options struct {
	// PageSize is the limit used for every page of a stats fetch.
	PageSize int
	// MaxRows caps the invoices fed into one computation; 0 disables the cap.
	MaxRows int
	SortBy  string
	// FetchTimeout bounds one shared stats fetch. The fetch ignores caller
	// cancellation; each caller still stops waiting when its own ctx ends.
	FetchTimeout time.Duration
}

// Service builds invoice stats and table views on top of a data source.
type Service struct {
	source   source.Source
	opts     Options
	logger   *slog.Logger
	observer StatsObserver
	group    singleflight.Group
}

// NewService wires the service with its data source.
func NewService(src source.Source, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.SortBy == "" {
		opts.SortBy = "issuedDate"
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	return &Service{source: src, opts: opts, logger: logger}
}

// WithObserver attaches a stats observer.
func (s *Service) WithObserver(observer StatsObserver) *Service {
	s.observer = observer
	return s
}

// TableResult is one filtered page of a table view.
type TableResult struct {
	Data []invoices.Invoice `json:"data"`
	Meta shared.Pagination  `json:"meta"`
	// Filtered is how many rows of the fetched page survived the table filter.
	Filtered int `json:"filtered"`
}

// Stats fetches every invoice the source holds (up to MaxRows) and computes
// the summary for rng. Identical concurrent calls share one fetch. On error
// the zero summary is returned next to the error.
func (s *Service) Stats(ctx context.Context, rng *invoices.DateRange) (stats.Summary, error) {
	if s.source == nil {
		return stats.Zero(), errors.New("insights: source not configured")
	}
	key := "stats:" + rng.String()
	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FetchTimeout)
		defer cancel()
		list, _, err := source.FetchAll(fetchCtx, s.source, source.ListRequest{
			Limit:     s.opts.PageSize,
			SortBy:    s.opts.SortBy,
			SortOrder: source.SortDesc,
		}, s.opts.MaxRows)
		if err != nil {
			return nil, err
		}
		summary := stats.Compute(list, rng)
		s.observe("ok", len(list))
		return summary, nil
	})

	select {
	case <-ctx.Done():
		return stats.Zero(), ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			s.observe("degraded", 0)
			s.logger.Warn("invoice stats fetch failed", slog.String("range", rng.String()), slog.Any("error", res.Err))
			return stats.Zero(), fmt.Errorf("insights: stats: %w", res.Err)
		}
		if res.Shared {
			s.observe("shared", 0)
		}
		summary := res.Val.(stats.Summary)
		// every caller gets its own range copy
		summary.Range = summary.Range.Clone()
		return summary, nil
	}
}

// Table fetches one page and applies q to it.
func (s *Service) Table(ctx context.Context, req source.ListRequest, q table.Query) (TableResult, error) {
	if s.source == nil {
		return TableResult{}, errors.New("insights: source not configured")
	}
	page, err := s.source.List(ctx, req)
	if err != nil {
		return TableResult{}, fmt.Errorf("insights: table: %w", err)
	}
	rows := table.Apply(page.Data, q)
	return TableResult{Data: rows, Meta: page.Meta, Filtered: len(rows)}, nil
}

// Approve forwards an approval to the source.
func (s *Service) Approve(ctx context.Context, id string) error {
	return s.mutate(ctx, "approve", id, func() error { return s.source.Approve(ctx, id) })
}

// Reject forwards a rejection with its reason to the source.
func (s *Service) Reject(ctx context.Context, id, reason string) error {
	return s.mutate(ctx, "reject", id, func() error { return s.source.Reject(ctx, id, reason) })
}

// Delete forwards a deletion to the source.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete", id, func() error { return s.source.Delete(ctx, id) })
}

// Invalidate drops cached invoice pages when the source supports it.
func (s *Service) Invalidate(ctx context.Context) error {
	inv, ok := s.source.(Invalidator)
	if !ok {
		return nil
	}
	return inv.Invalidate(ctx)
}

func (s *Service) mutate(ctx context.Context, op, id string, fn func() error) error {
	if s.source == nil {
		return errors.New("insights: source not configured")
	}
	if err := fn(); err != nil {
		return fmt.Errorf("insights: %s %s: %w", op, id, err)
	}
	s.logger.InfoContext(ctx, "invoice mutated", slog.String("op", op), slog.String("uuid", id))
	return nil
}

func (s *Service) observe(outcome string, n int) {
	if s.observer != nil {
		s.observer.ObserveStatsBuild(outcome, n)
	}
}
