package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricRefreshDuration  = "ingest_refresh_duration_seconds"
	MetricChannelsRefresh  = "ingest_channel_refresh_total"
	MetricVideosUpserted   = "ingest_videos_upserted_total"
	MetricLastRefreshEpoch = "ingest_last_refresh_timestamp_seconds"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics is safe to use as a nil pointer.
type Metrics struct {
	refreshDuration prometheus.Histogram
	channelsRefresh *prometheus.CounterVec
	videosUpserted  prometheus.Counter
	lastRefresh     prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRefreshDuration,
			Help:    "Duration of full refresh runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		channelsRefresh: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricChannelsRefresh,
				Help: "Channel refreshes by result",
			},
			[]string{"result"},
		),
		videosUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricVideosUpserted,
			Help: "Videos written by refreshes",
		}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLastRefreshEpoch,
			Help: "Unix time of the last completed full refresh",
		}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{m.refreshDuration, m.channelsRefresh, m.videosUpserted, m.lastRefresh} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) recordChannel(videos int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.channelsRefresh.WithLabelValues(resultFailure).Inc()
		return
	}
	m.channelsRefresh.WithLabelValues(resultSuccess).Inc()
	m.videosUpserted.Add(float64(videos))
}

func (m *Metrics) recordRun(started, finished time.Time) {
	if m == nil {
		return
	}
	m.refreshDuration.Observe(finished.Sub(started).Seconds())
	m.lastRefresh.Set(float64(finished.Unix()))
}
