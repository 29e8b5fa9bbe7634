package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatsWarmup recomputes invoice stats so the source cache is primed.
	TaskStatsWarmup = "invoices:stats_warmup"
	// TaskCacheBump invalidates every cached invoice page.
	TaskCacheBump = "invoices:cache_bump"
)

// StatsWarmupPayload describes which ranges a warmup run computes.
type StatsWarmupPayload struct {
	// WindowDays sizes the today-based default range; 0 uses the worker default.
	WindowDays int `json:"windowDays"`
}

// NewStatsWarmupTask constructs a stats warmup task.
func NewStatsWarmupTask(payload StatsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatsWarmup, data), nil
}

// NewCacheBumpTask constructs a cache invalidation task.
func NewCacheBumpTask() *asynq.Task {
	return asynq.NewTask(TaskCacheBump, nil)
}

// NewTask builds a task by type name with its default payload. It backs the
// CLI trigger command.
func NewTask(name string) (*asynq.Task, error) {
	switch name {
	case TaskStatsWarmup:
		return NewStatsWarmupTask(StatsWarmupPayload{})
	case TaskCacheBump:
		return NewCacheBumpTask(), nil
	}
	return nil, &UnknownTaskError{Name: name}
}

// UnknownTaskError reports a task type this worker does not handle.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return "jobs: unknown task " + e.Name
}
