package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wafi",
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "Background tasks handled, by type and result.",
		},
		[]string{"task_type", "result"},
	)

	taskSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wafi",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Background task run time in seconds.",
			Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"task_type"},
	)

	tasksRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wafi",
			Subsystem: "worker",
			Name:      "tasks_running",
			Help:      "Background tasks currently running.",
		},
		[]string{"task_type"},
	)
)

// taskResult is "ok", "retry" or "skipped" (the task will not run again).
func taskResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, asynq.SkipRetry):
		return "skipped"
	default:
		return "retry"
	}
}

// AsynqMetricsMiddleware records run time and outcome of every task.
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			typ := task.Type()
			running := tasksRunning.WithLabelValues(typ)
			running.Inc()
			defer running.Dec()

			start := time.Now()
			err := next.ProcessTask(ctx, task)
			taskSeconds.WithLabelValues(typ).Observe(time.Since(start).Seconds())
			tasksTotal.WithLabelValues(typ, taskResult(err)).Inc()
			return err
		})
	}
}
