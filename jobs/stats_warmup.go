package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/invoice-insights/internal/filterstate"
	"github.com/odyssey-erp/invoice-insights/internal/invoices"
	"github.com/odyssey-erp/invoice-insights/internal/invoices/stats"
	jobmetrics "github.com/odyssey-erp/invoice-insights/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StatsComputer is the slice of the insights service a warmup needs.
type StatsComputer interface {
	Stats(ctx context.Context, rng *invoices.DateRange) (stats.Summary, error)
}

// StatsWarmupJob computes stats for the default window and for all time so
// the invoice pages they read are cached before users ask.
type StatsWarmupJob struct {
	Stats      StatsComputer
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	WindowDays int
	Timeout    time.Duration
	clock      func() time.Time
}

// NewStatsWarmupJob wires dependencies for the warmup handler.
func NewStatsWarmupJob(svc StatsComputer, logger *slog.Logger, metrics *jobmetrics.Metrics, windowDays int, clock func() time.Time) *StatsWarmupJob {
	return &StatsWarmupJob{
		Stats:      svc,
		Logger:     logger,
		Metrics:    metrics,
		WindowDays: windowDays,
		Timeout:    time.Minute,
		clock:      clock,
	}
}

// Handle processes stats warmup tasks.
func (j *StatsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Stats == nil {
		return errors.New("stats warmup: handler not configured")
	}
	tracker := j.metrics().Track(TaskStatsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	var payload StatsWarmupPayload
	if raw := t.Payload(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("stats warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = j.WindowDays
	}

	logger := j.logger().With(slog.Int("window_days", payload.WindowDays))
	logger.Info("starting stats warmup")
	start := time.Now()

	ranges := []*invoices.DateRange{
		filterstate.DefaultRange(j.now(), payload.WindowDays),
		nil,
	}
	for _, rng := range ranges {
		summary, err := j.warm(ctx, rng)
		if err != nil {
			logger.Error("warm stats range", slog.String("range", rng.String()), slog.Any("error", err))
			return err
		}
		logger.Debug("warmed stats range", slog.String("range", rng.String()), slog.Int("invoices", summary.TotalInvoices))
	}

	logger.Info("completed stats warmup", slog.Int("ranges", len(ranges)), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *StatsWarmupJob) warm(ctx context.Context, rng *invoices.DateRange) (stats.Summary, error) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	rangeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return j.Stats.Stats(rangeCtx, rng)
}

func (j *StatsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskStatsWarmup))
}

func (j *StatsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StatsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
