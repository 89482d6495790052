package analytics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricQueryDuration   = "analytics_query_duration_seconds"
	MetricQueryErrors     = "analytics_query_errors_total"
	MetricViralDetected   = "analytics_viral_videos_detected_total"
	MetricChannelsSkipped = "analytics_channels_skipped_total"
)

const (
	OperationDetectViral  = "detect_viral"
	OperationRankByPeriod = "rank_by_period"
	OperationGroupMetrics = "group_metrics"
	OperationRankGroups   = "rank_groups"
	OperationReconcile    = "reconcile_groups"
)

const (
	SkipInsufficientData = "insufficient_data"
	SkipDegenerate       = "degenerate_distribution"
	SkipUnknownChannel   = "unknown_channel"
)

// Metrics is safe to use as a nil pointer; every recorder becomes a no-op.
type Metrics struct {
	queryDuration   *prometheus.HistogramVec
	queryErrors     *prometheus.CounterVec
	viralDetected   *prometheus.CounterVec
	channelsSkipped *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricQueryDuration,
				Help:    "Duration of analytics computations by operation",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		queryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricQueryErrors,
				Help: "Analytics computations that failed by operation",
			},
			[]string{"operation"},
		),
		viralDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricViralDetected,
				Help: "Viral videos returned by detection passes by tier",
			},
			[]string{"level"},
		),
		channelsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricChannelsSkipped,
				Help: "Channels excluded from viral detection by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.queryDuration,
		m.queryErrors,
		m.viralDetected,
		m.channelsSkipped,
	}
}

// observe records duration and, when err is non-nil, a failure for operation.
func (m *Metrics) observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err != nil {
		m.queryErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) incViral(level string) {
	if m == nil {
		return
	}
	m.viralDetected.WithLabelValues(level).Inc()
}

func (m *Metrics) incSkipped(reason string) {
	if m == nil {
		return
	}
	m.channelsSkipped.WithLabelValues(reason).Inc()
}
