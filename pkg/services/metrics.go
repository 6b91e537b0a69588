package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ekaya-inc/ekaya-admingen/pkg/services/workqueue"
)

var (
	// deployTasks counts finished deployments.
	// Labels: status (completed, failed)
	deployTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "admingen",
		Name:      "deploy_tasks_total",
		Help:      "Deployment tasks by terminal status",
	}, []string{"status"})

	// deployFiles counts files handled by deployments.
	// Labels: group (frontend, backend, sql), outcome (written, skipped)
	deployFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "admingen",
		Subsystem: "deploy",
		Name:      "files_total",
		Help:      "Generated files written or skipped during deployment",
	}, []string{"group", "outcome"})

	// deployDuration measures job run time from start to terminal state.
	deployDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "admingen",
		Subsystem: "deploy",
		Name:      "duration_seconds",
		Help:      "Deployment job duration in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"status"})

	// deployQueueTasks tracks deploy queue occupancy.
	// Labels: state (pending, running)
	deployQueueTasks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "admingen",
		Subsystem: "deploy_queue",
		Name:      "tasks",
		Help:      "Deployment tasks waiting or running in the queue",
	}, []string{"state"})
)

// ObserveDeployQueue publishes queue progress as gauges. It is meant for
// workqueue.WithOnUpdate and must not call back into the queue.
func ObserveDeployQueue(p workqueue.Progress) {
	deployQueueTasks.WithLabelValues("pending").Set(float64(p.Pending))
	deployQueueTasks.WithLabelValues("running").Set(float64(p.Running))
}
