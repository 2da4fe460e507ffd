package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "brandpost"

// Metrics groups the publishing pipeline collectors.
type Metrics struct {
	PlatformPublish  *prometheus.CounterVec
	PostsFinalized   *prometheus.CounterVec
	SchedulerTick    prometheus.Histogram
	SchedulerSkipped *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PlatformPublish: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "platform_publish_total",
				Help:      "Platform adapter invocations by outcome",
			},
			[]string{"platform", "outcome"},
		),
		PostsFinalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "posts_finalized_total",
				Help:      "Posts that reached a publish outcome, by status",
			},
			[]string{"status"},
		),
		SchedulerTick: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scheduler_tick_seconds",
				Help:      "Wall time of one scheduler tick",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
		),
		SchedulerSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_skipped_total",
				Help:      "Candidate posts the scheduler skipped, by reason",
			},
			[]string{"reason"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.PlatformPublish, m.PostsFinalized, m.SchedulerTick, m.SchedulerSkipped)
	}
	return m
}

func (m *Metrics) ObservePlatform(platform string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.PlatformPublish.WithLabelValues(platform, outcome).Inc()
}

func (m *Metrics) ObserveFinalized(status string) {
	m.PostsFinalized.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSkipped(reason string) {
	m.SchedulerSkipped.WithLabelValues(reason).Inc()
}
