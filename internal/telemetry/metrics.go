// Metrics registry built on prometheus/client_golang, grounded on the
// runZeroInc sockstats/conniver exporters' collector pattern. The original
// prototype's MetricsLogger (common/metrics_logger.py) is reproduced as the
// RTT/jitter/loss/tick-time gauges and histograms registered here, rather
// than as an in-process Python list-of-samples.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every Prometheus collector the engine exposes. Server and
// client each build their own Metrics with every collector registered;
// each side updates only the collectors it feeds.
type Metrics struct {
	Registry *prometheus.Registry

	RTT              prometheus.Histogram
	Jitter           prometheus.Gauge
	PacketLossRate   prometheus.Gauge
	TickDuration     prometheus.Histogram
	PredictionError  prometheus.Histogram
	BandwidthSentBps prometheus.Gauge
	BandwidthRecvBps prometheus.Gauge
	ConnectedClients prometheus.Gauge
	SnapshotsSent    prometheus.Counter
	InputsReceived   prometheus.Counter
	PacketsLost      prometheus.Counter
}

// NewMetrics constructs and registers the full collector set against a
// fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		RTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickengine_rtt_seconds",
			Help:    "Round-trip time measured via ping/pong.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		Jitter: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_rtt_jitter_seconds",
			Help: "RFC 3550-style smoothed RTT jitter.",
		}),
		PacketLossRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_packet_loss_rate",
			Help: "Fraction of sent packets detected as lost.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickengine_tick_duration_seconds",
			Help:    "Wall-clock time spent running one simulation tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		PredictionError: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickengine_prediction_error_units",
			Help:    "Euclidean distance between client prediction and reconciled server state.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		BandwidthSentBps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_bandwidth_sent_bps",
			Help: "Outbound bandwidth in bits per second.",
		}),
		BandwidthRecvBps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_bandwidth_received_bps",
			Help: "Inbound bandwidth in bits per second.",
		}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_connected_clients",
			Help: "Number of clients currently registered.",
		}),
		SnapshotsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_snapshots_sent_total",
			Help: "Total snapshot packets broadcast.",
		}),
		InputsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_inputs_received_total",
			Help: "Total distinct input records applied to the world.",
		}),
		PacketsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickengine_packets_lost_total",
			Help: "Total packets declared lost by ack-age tracking.",
		}),
	}

	reg.MustRegister(
		m.RTT, m.Jitter, m.PacketLossRate, m.TickDuration, m.PredictionError,
		m.BandwidthSentBps, m.BandwidthRecvBps, m.ConnectedClients,
		m.SnapshotsSent, m.InputsReceived, m.PacketsLost,
	)
	return m
}
