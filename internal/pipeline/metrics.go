package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 采集任务的 Prometheus 指标，nil 时所有方法都是空操作
type Metrics struct {
	sourceRuns  *prometheus.CounterVec
	sourceItems *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
	runDuration prometheus.Histogram
}

// NewMetrics 创建并注册指标；reg 为 nil 时注册到默认 Registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		sourceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotboard",
			Name:      "source_runs_total",
			Help:      "Per-source pipeline outcomes by final state.",
		}, []string{"source", "state"}),
		sourceItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hotboard",
			Name:      "source_items",
			Help:      "Item count of the last snapshot written for a source.",
		}, []string{"source"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hotboard",
			Name:      "source_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful snapshot write.",
		}, []string{"source"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hotboard",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full collection run.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
	}
	reg.MustRegister(m.sourceRuns, m.sourceItems, m.lastSuccess, m.runDuration)
	return m
}

func (m *Metrics) observe(s *Summary) {
	if m == nil {
		return
	}
	for _, r := range s.Results {
		m.sourceRuns.WithLabelValues(r.Source, string(r.Stage)).Inc()
		if r.Stage == StageWritten {
			m.sourceItems.WithLabelValues(r.Source).Set(float64(r.Items))
			m.lastSuccess.WithLabelValues(r.Source).Set(float64(s.FinishedAt.Unix()))
		}
	}
	m.runDuration.Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
}
