package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-insights/internal/invoices"
	"github.com/odyssey-erp/invoice-insights/internal/invoices/stats"
	jobmetrics "github.com/odyssey-erp/invoice-insights/internal/jobs"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingStats struct {
	mu     sync.Mutex
	ranges []string
	err    error
}

func (r *recordingStats) Stats(_ context.Context, rng *invoices.DateRange) (stats.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranges = append(r.ranges, rng.String())
	if r.err != nil {
		return stats.Zero(), r.err
	}
	return stats.Summary{TotalInvoices: 2}, nil
}

func fixedClock() time.Time {
	return time.Date(2024, time.June, 3, 23, 30, 0, 0, time.UTC)
}

func TestStatsWarmupComputesDefaultAndUnboundedRanges(t *testing.T) {
	svc := &recordingStats{}
	job := NewStatsWarmupJob(svc, quietLogger, jobmetrics.NewMetrics(prometheus.NewRegistry()), 7, fixedClock)

	task, err := NewStatsWarmupTask(StatsWarmupPayload{WindowDays: 30})
	require.NoError(t, err)
	require.Equal(t, TaskStatsWarmup, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"2024-06-03:2024-07-03", "-:-"}, svc.ranges)
}

func TestStatsWarmupFallsBackToConfiguredWindow(t *testing.T) {
	svc := &recordingStats{}
	job := NewStatsWarmupJob(svc, quietLogger, jobmetrics.NewMetrics(prometheus.NewRegistry()), 7, fixedClock)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskStatsWarmup, nil)))
	require.Equal(t, "2024-06-03:2024-06-10", svc.ranges[0])
}

func TestStatsWarmupFailures(t *testing.T) {
	svc := &recordingStats{err: errors.New("source down")}
	job := NewStatsWarmupJob(svc, quietLogger, jobmetrics.NewMetrics(prometheus.NewRegistry()), 7, fixedClock)
	err := job.Handle(context.Background(), asynq.NewTask(TaskStatsWarmup, nil))
	require.ErrorContains(t, err, "source down")
	require.Len(t, svc.ranges, 1)

	err = job.Handle(context.Background(), asynq.NewTask(TaskStatsWarmup, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	var unconfigured *StatsWarmupJob
	require.Error(t, unconfigured.Handle(context.Background(), asynq.NewTask(TaskStatsWarmup, nil)))
}

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

func TestCacheBumpJob(t *testing.T) {
	inv := &countingInvalidator{}
	job := &CacheBumpJob{Cache: inv, Logger: quietLogger, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}
	require.NoError(t, job.Handle(context.Background(), NewCacheBumpTask()))
	require.Equal(t, 1, inv.calls)

	inv.err = errors.New("redis gone")
	require.Error(t, job.Handle(context.Background(), NewCacheBumpTask()))
}

func TestNewTaskByName(t *testing.T) {
	task, err := NewTask(TaskStatsWarmup)
	require.NoError(t, err)
	var payload StatsWarmupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Zero(t, payload.WindowDays)

	task, err = NewTask(TaskCacheBump)
	require.NoError(t, err)
	require.Equal(t, TaskCacheBump, task.Type())

	_, err = NewTask("mail:send")
	var unknown *UnknownTaskError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "mail:send", unknown.Name)
}

type inspectorStub struct {
	info *asynq.QueueInfo
	err  error
}

func (s inspectorStub) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestJobsHealthEndpoint(t *testing.T) {
	serve := func(inspector QueueInspector) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		NewHandler(inspector, quietLogger).MountRoutes(r)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rr
	}

	rr := serve(inspectorStub{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}})
	require.Equal(t, http.StatusOK, rr.Code)
	var stats QueueStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	require.Equal(t, QueueStats{Queue: QueueDefault, Pending: 3, Retry: 1}, stats)

	rr = serve(inspectorStub{err: errors.New("redis down")})
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = serve(nil)
	require.Equal(t, http.StatusOK, rr.Code)
}
