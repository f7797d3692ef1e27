// Package metrics holds the Prometheus collectors shared by the web and worker processes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginAttempts counts login attempts by outcome ("success" or "denied").
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_login_attempts_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)

	// TasksSubmitted counts jobs accepted onto the queue.
	TasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_tasks_submitted_total",
			Help: "Total number of jobs published to the job queue",
		},
		[]string{"type"},
	)

	// TasksCompleted counts jobs that reached a terminal status.
	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_tasks_completed_total",
			Help: "Total number of jobs finished by the worker pool",
		},
		[]string{"type", "status"},
	)

	// TaskDuration observes handler run time.
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_task_duration_seconds",
			Help:    "Job execution time in seconds",
			Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"type"},
	)

	// SessionsExpired counts sessions dropped by the sliding-expiry check.
	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_sessions_expired_total",
			Help: "Total number of sessions deleted after passing their expiry",
		},
	)
)

// ObserveTask records a finished job.
func ObserveTask(taskType, status string, elapsed time.Duration) {
	TasksCompleted.WithLabelValues(taskType, status).Inc()
	TaskDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
