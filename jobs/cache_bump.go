package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/invoice-insights/internal/jobs"
)

// Invalidator drops cached invoice pages.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// CacheBumpJob bumps the invoice cache version on demand.
type CacheBumpJob struct {
	Cache   Invalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes cache bump tasks.
func (j *CacheBumpJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Cache == nil {
		return errors.New("cache bump: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskCacheBump)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := j.Cache.Invalidate(ctx); err != nil {
		return err
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("invoice cache bumped", slog.String("job", TaskCacheBump))
	return nil
}
