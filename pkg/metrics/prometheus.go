package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"StockScreener/internal/domain/models"
)

// Recorder implements the screening Metrics port with Prometheus collectors.
type Recorder struct {
	screened *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	jobs     *prometheus.CounterVec
	running  *prometheus.GaugeVec
}

// New registers the screening collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		screened: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_symbols_screened_total",
				Help: "Symbols evaluated per time frame and outcome",
			},
			[]string{"time_frame", "passed"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_errors_total",
				Help: "Errors encountered, by kind",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_operation_duration_seconds",
				Help:    "Duration of screening operations in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"operation"},
		),
		jobs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_jobs_total",
				Help: "Async job transitions by type and status",
			},
			[]string{"job_type", "status"},
		),
		running: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "screener_jobs_running",
				Help: "Async jobs currently processing",
			},
			[]string{"job_type"},
		),
	}
}

func (r *Recorder) RecordScreened(tf models.TimeFrame, passed bool) {
	label := "false"
	if passed {
		label = "true"
	}
	r.screened.WithLabelValues(string(tf), label).Inc()
}

func (r *Recorder) RecordError(kind string) {
	if kind == "" {
		kind = "internal"
	}
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordJob counts a transition and tracks the processing gauge.
func (r *Recorder) RecordJob(jobType string, status models.JobStatus) {
	r.jobs.WithLabelValues(jobType, string(status)).Inc()
	if status == models.JobProcessing {
		r.running.WithLabelValues(jobType).Inc()
		return
	}
	r.running.WithLabelValues(jobType).Dec()
}
