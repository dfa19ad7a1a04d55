// Package metrics exposes Prometheus collectors for the task executor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TasksSubmitted counts every accepted submission.
	TasksSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "asyncd_tasks_submitted_total",
		Help: "Total number of tasks accepted by the executor.",
	})

	// TasksCompleted counts terminal transitions, labelled by final state.
	TasksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asyncd_tasks_completed_total",
			Help: "Total number of tasks that reached a terminal state.",
		},
		[]string{"state"},
	)

	// WorkersLive tracks the current number of live workers.
	WorkersLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "asyncd_workers_live",
		Help: "Current number of live worker goroutines.",
	})

	// QueueDepth tracks the number of tasks waiting in the pending queue.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "asyncd_queue_depth",
		Help: "Current number of tasks in the pending queue.",
	})
)

func init() {
	prometheus.MustRegister(TasksSubmitted)
	prometheus.MustRegister(TasksCompleted)
	prometheus.MustRegister(WorkersLive)
	prometheus.MustRegister(QueueDepth)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
