package monitoring

import (
	"time"

	"astrelay/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	usersOnlineTotal   prometheus.Gauge
	streamsActiveTotal prometheus.Gauge

	// Counters
	connectionsTotal   prometheus.Counter
	droppedFramesTotal prometheus.Counter
	actionsTotal       *prometheus.CounterVec
	throttledTotal     prometheus.Counter

	// Histograms
	broadcastDuration *prometheus.HistogramVec

	// Stream metrics
	streamViewerCount *prometheus.GaugeVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		usersOnlineTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "astrelay_users_online_total",
			Help: "Number of users currently connected to this relay instance",
		}),

		streamsActiveTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "astrelay_streams_active_total",
			Help: "Number of live streams",
		}),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "astrelay_connections_total",
			Help: "Total number of websocket connections accepted",
		}),

		droppedFramesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "astrelay_dropped_frames_total",
			Help: "Frames dropped because a consumer's send queue was full",
		}),

		actionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "astrelay_zodiac_actions_total",
			Help: "Zodiac actions accepted, by action type",
		}, []string{"action"}),

		throttledTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "astrelay_zodiac_actions_throttled_total",
			Help: "Zodiac actions rejected by the per-user cooldown",
		}),

		broadcastDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "astrelay_broadcast_duration_seconds",
			Help:    "Time spent fanning an envelope out to local connections",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"type"}),

		streamViewerCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "astrelay_stream_viewer_count",
			Help: "Number of viewers in each live stream",
		}, []string{"stream_id"}),
	}
}

func (p *PrometheusCollector) RecordUserConnected() {
	p.usersOnlineTotal.Inc()
	p.connectionsTotal.Inc()
}

func (p *PrometheusCollector) RecordUserDisconnected() {
	p.usersOnlineTotal.Dec()
}

func (p *PrometheusCollector) RecordBroadcast(msgType string, duration time.Duration) {
	p.broadcastDuration.WithLabelValues(msgType).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordDroppedFrame() {
	p.droppedFramesTotal.Inc()
}

func (p *PrometheusCollector) RecordAction(action domain.ActionType) {
	p.actionsTotal.WithLabelValues(string(action)).Inc()
}

func (p *PrometheusCollector) RecordActionThrottled() {
	p.throttledTotal.Inc()
}

func (p *PrometheusCollector) RecordStreamStarted(streamID domain.StreamID) {
	p.streamsActiveTotal.Inc()
}

func (p *PrometheusCollector) RecordStreamEnded(streamID domain.StreamID) {
	p.streamsActiveTotal.Dec()
	p.streamViewerCount.DeleteLabelValues(string(streamID))
}

func (p *PrometheusCollector) SetStreamViewers(streamID domain.StreamID, viewers int) {
	p.streamViewerCount.WithLabelValues(string(streamID)).Set(float64(viewers))
}
