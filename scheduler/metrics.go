package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridless_jobs_submitted_total",
		Help: "Background pathfinding jobs submitted",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridless_jobs_finished_total",
		Help: "Background pathfinding jobs finished by status",
	}, []string{"status"}) // path, no_path, failed, canceled

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridless_job_queue_depth",
		Help: "Jobs waiting in the background queue",
	})

	sliceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridless_scheduler_slice_duration_seconds",
		Help:    "Wall time of one scheduler slice",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridless_job_duration_seconds",
		Help:    "Time from submission to completion of a job",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
)
