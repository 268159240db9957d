package monitoring

import (
	"castdeck/internal/core/domain"
	"castdeck/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements the metrics port.
type PrometheusCollector struct {
	receiversConnected prometheus.Gauge
	roomsLive          prometheus.Gauge
	callsPushedTotal   prometheus.Counter

	sourcesActive       *prometheus.GaugeVec
	captureFailureTotal *prometheus.CounterVec
}

func NewPrometheusCollector() ports.Metrics {
	return &PrometheusCollector{
		receiversConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "castdeck_receivers_connected",
			Help: "Number of currently connected receivers",
		}),

		roomsLive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "castdeck_rooms_live",
			Help: "Number of rooms currently broadcasting",
		}),

		callsPushedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "castdeck_calls_pushed_total",
			Help: "Total number of media calls pushed to receivers",
		}),

		sourcesActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "castdeck_sources_active",
			Help: "Number of currently active sources",
		}, []string{"kind"}),

		captureFailureTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "castdeck_capture_failures_total",
			Help: "Total number of failed capture acquisitions",
		}, []string{"kind"}),
	}
}

func (p *PrometheusCollector) ReceiverConnected() {
	p.receiversConnected.Inc()
}

func (p *PrometheusCollector) ReceiverDisconnected() {
	p.receiversConnected.Dec()
}

func (p *PrometheusCollector) SourceActivated(kind domain.SourceKind) {
	p.sourcesActive.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) SourceDeactivated(kind domain.SourceKind) {
	p.sourcesActive.WithLabelValues(string(kind)).Dec()
}

func (p *PrometheusCollector) CaptureFailure(kind domain.SourceKind) {
	p.captureFailureTotal.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) CallPushed() {
	p.callsPushedTotal.Inc()
}

func (p *PrometheusCollector) RoomLive(live bool) {
	if live {
		p.roomsLive.Inc()
	} else {
		p.roomsLive.Dec()
	}
}
