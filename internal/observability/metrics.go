package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the market engine.
type Metrics struct {
	// Engine operations.
	OpsApplied     *prometheus.CounterVec
	OpsRejected    *prometheus.CounterVec
	OpDuration     *prometheus.HistogramVec
	EngineSequence prometheus.Gauge
	MarketsOpen    prometheus.Gauge

	// Resolution flow.
	ProposalsPosted   prometheus.Counter
	DisputesPosted    prometheus.Counter
	MarketsResolved   *prometheus.CounterVec // path label: undisputed|disputed
	ResolutionsFailed *prometheus.CounterVec // reason label
	EmergencyRefunds  prometheus.Counter

	// Outbound fan-out.
	BroadcastDrops prometheus.Counter
	PublishDrops   prometheus.Counter

	// Persistence.
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistErrors          *prometheus.CounterVec
	PersistBatchSize       prometheus.Histogram

	// HTTP/WS surface.
	HTTPRequests *prometheus.CounterVec
	WSClients    prometheus.Gauge
}

// NewMetrics registers all metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jnglz_engine_ops_applied_total",
			Help: "Committed engine operations by type.",
		}, []string{"op"}),
		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jnglz_engine_ops_rejected_total",
			Help: "Rejected engine operations by type and reason.",
		}, []string{"op", "reason"}),
		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jnglz_engine_op_duration_seconds",
			Help:    "Engine operation processing time.",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12),
		}, []string{"op"}),
		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jnglz_engine_sequence",
			Help: "Current engine event sequence.",
		}),
		MarketsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jnglz_markets_open",
			Help: "Markets that have not resolved.",
		}),
		ProposalsPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jnglz_proposals_posted_total",
			Help: "Outcome proposals posted.",
		}),
		DisputesPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jnglz_disputes_posted_total",
			Help: "Disputes posted.",
		}),
		MarketsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jnglz_markets_resolved_total",
			Help: "Markets resolved, by path.",
		}, []string{"path"}),
		ResolutionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jnglz_resolutions_failed_total",
			Help: "Finalize attempts that soft-failed, by reason.",
		}, []string{"reason"}),
		EmergencyRefunds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jnglz_emergency_refunds_total",
			Help: "Emergency refunds paid.",
		}),
		BroadcastDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jnglz_broadcast_drops_total",
			Help: "Events dropped on the non-blocking broadcast channel.",
		}),
		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jnglz_publish_drops_total",
			Help: "Events dropped by the NATS publisher.",
		}),
		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jnglz_persist_events_written_total",
			Help: "Event rows written to Postgres.",
		}),
		PersistJournalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jnglz_persist_journals_written_total",
			Help: "Journal rows written to Postgres.",
		}),
		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jnglz_persist_errors_total",
			Help: "Persistence failures by stage.",
		}, []string{"stage"}),
		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "jnglz_persist_batch_size",
			Help:    "Rows per persistence flush.",
			Buckets: prometheus.LinearBuckets(1, 10, 10),
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jnglz_http_requests_total",
			Help: "HTTP API requests by route and status.",
		}, []string{"route", "status"}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jnglz_ws_clients",
			Help: "Connected websocket clients.",
		}),
	}
}
