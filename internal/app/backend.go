package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/invoice-insights/internal/insights"
	"github.com/odyssey-erp/invoice-insights/internal/invoices/source"
	"github.com/odyssey-erp/invoice-insights/internal/observability"
	"github.com/odyssey-erp/invoice-insights/internal/platform/cache"
	"github.com/odyssey-erp/invoice-insights/internal/platform/db"
)

// CacheNamespace prefixes every cached invoice page in Redis.
const CacheNamespace = "invoice-insights:invoices"

// Backend is the invoice source stack shared by the server, worker and CLI.
type Backend struct {
	Source  *source.CachedSource
	Cache   *cache.Versioned
	Service *insights.Service

	closers []func()
}

// NewBackend selects the configured invoice source, wraps it with metrics and
// the versioned Redis cache, and builds the insights service on top.
func NewBackend(ctx context.Context, cfg *Config, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) (*Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: backend requires config")
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{}

	var backend source.Source
	switch cfg.InvoiceSource {
	case SourcePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		backend = source.NewPostgresSource(pool)
	default:
		client, err := source.NewRESTClient(cfg.InvoiceAPIURL, cfg.InvoiceAPIToken, cfg.InvoiceAPITimeout)
		if err != nil {
			return nil, err
		}
		backend = client
	}

	b.Cache = cache.NewVersioned(redisClient, CacheNamespace, cfg.SourceCacheTTL)
	b.Source = source.NewCachedSource(source.Instrument(backend, cfg.InvoiceSource, metrics), b.Cache, logger)
	b.Service = insights.NewService(b.Source, insights.Options{
		PageSize:     cfg.StatsPageSize,
		MaxRows:      cfg.StatsMaxRows,
		SortBy:       cfg.StatsSortBy,
		FetchTimeout: cfg.AppRequestTimeout,
	}, logger).WithObserver(metrics)

	logger.Info("invoice source ready", slog.String("source", cfg.InvoiceSource))
	return b, nil
}

// Close releases backend connections.
func (b *Backend) Close() {
	if b == nil {
		return
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}
