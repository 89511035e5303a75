package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records fabric activity as Prometheus series.
type Metrics struct {
	enqueued *prometheus.CounterVec
	settled  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight *prometheus.GaugeVec
}

// NewMetrics creates and registers the fabric collectors on registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		enqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harbor_jobs_enqueued_total",
				Help: "Jobs accepted by the broker.",
			},
			[]string{"queue", "kind"},
		),
		settled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harbor_jobs_total",
				Help: "Job attempts by outcome.",
			},
			[]string{"queue", "kind", "outcome"}, // completed | retried | failed | released
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harbor_job_duration_seconds",
				Help:    "Wall-clock duration of job attempts.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"queue", "kind"},
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "harbor_jobs_inflight",
				Help: "Jobs currently executing.",
			},
			[]string{"queue"},
		),
	}

	registerer.MustRegister(m.enqueued, m.settled, m.duration, m.inflight)
	return m
}

// Listener returns a fabric listener recording settled attempts.
func (m *Metrics) Listener() Listener {
	return func(e Event) {
		m.settled.WithLabelValues(e.Job.Queue, e.Job.Kind, string(e.Type)).Inc()
		m.duration.WithLabelValues(e.Job.Queue, e.Job.Kind).Observe(e.Duration.Seconds())
	}
}

func (m *Metrics) observeEnqueue(job *Job) {
	if m == nil {
		return
	}
	m.enqueued.WithLabelValues(job.Queue, job.Kind).Inc()
}

func (m *Metrics) trackInflight(queue string, delta float64) {
	if m == nil {
		return
	}
	m.inflight.WithLabelValues(queue).Add(delta)
}
