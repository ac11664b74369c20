package bench

import (
	"time"

	"ViewBench/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 测量过程的 Prometheus 指标
type Metrics struct {
	trialSeconds *prometheus.HistogramVec
	worstSeconds *prometheus.GaugeVec
	measurements *prometheus.CounterVec
	failures     *prometheus.CounterVec
}

// NewMetrics 在 reg 上注册指标；reg 为 nil 时不注册（测试中使用独立 Registry）
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		trialSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "viewbench",
			Name:      "trial_duration_seconds",
			Help:      "Wall-clock duration of each timed trial.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 18),
		}, []string{"query", "variant"}),
		worstSeconds: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "viewbench",
			Name:      "worst_duration_seconds",
			Help:      "Worst trial duration of the latest measurement.",
		}, []string{"query", "variant"}),
		measurements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "viewbench",
			Name:      "measurements_total",
			Help:      "Completed measurements that produced a metric record.",
		}, []string{"query", "variant"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "viewbench",
			Name:      "measurement_failures_total",
			Help:      "Measurements aborted during warmup or a trial.",
		}, []string{"query", "variant", "phase"}),
	}
}

func (m *Metrics) observeTrial(queryID string, v model.Variant, d time.Duration) {
	if m == nil {
		return
	}
	m.trialSeconds.WithLabelValues(queryID, string(v)).Observe(d.Seconds())
}

func (m *Metrics) observeWorst(queryID string, v model.Variant, d time.Duration) {
	if m == nil {
		return
	}
	m.worstSeconds.WithLabelValues(queryID, string(v)).Set(d.Seconds())
	m.measurements.WithLabelValues(queryID, string(v)).Inc()
}

func (m *Metrics) observeFailure(queryID string, v model.Variant, phase model.MeasurementPhase) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(queryID, string(v), string(phase)).Inc()
}
