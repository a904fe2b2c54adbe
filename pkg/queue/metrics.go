package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	enqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chirpd_queue_enqueued_total",
			Help: "Jobs accepted into the in-memory queue.",
		},
		[]string{"type"},
	)
	enqueueFailTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chirpd_queue_enqueue_failures_total",
			Help: "Jobs rejected at enqueue (full or closed queue).",
		},
		[]string{"type"},
	)
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chirpd_queue_jobs_total",
			Help: "Processed jobs by terminal state.",
		},
		[]string{"type", "state"},
	)
	redrivenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chirpd_queue_redriven_total",
			Help: "Dead letters re-enqueued by the sweep.",
		},
	)
)

func init() {
	prometheus.MustRegister(enqueuedTotal, enqueueFailTotal, jobsTotal, redrivenTotal)
}
