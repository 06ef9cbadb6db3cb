package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reconcile metrics
	ReconcilePassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redkeeper_reconcile_passes_total",
			Help: "Total number of reconcile passes by event kind and outcome",
		},
		[]string{"event", "outcome"},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redkeeper_reconcile_duration_seconds",
			Help:    "Reconcile pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Topology metrics
	UnitPrimary = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "redkeeper_unit_is_primary",
			Help: "Whether this unit serves the primary role (1 = primary, 0 = replica)",
		},
	)

	PeersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "redkeeper_peers_total",
			Help: "Total number of peer units in the deployment",
		},
	)

	PeersUnreachable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "redkeeper_peers_unreachable_total",
			Help: "Number of peer units whose monitor did not answer the last probe",
		},
	)

	// Workload metrics
	ConfigWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redkeeper_config_writes_total",
			Help: "Total number of configuration files pushed by service",
		},
		[]string{"service"},
	)

	ServiceRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redkeeper_service_restarts_total",
			Help: "Total number of service restarts by service",
		},
		[]string{"service"},
	)

	AdminCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redkeeper_admin_commands_total",
			Help: "Total number of administrative commands by command and status",
		},
		[]string{"command", "status"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ReconcilePassesTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(UnitPrimary)
	prometheus.MustRegister(PeersTotal)
	prometheus.MustRegister(PeersUnreachable)
	prometheus.MustRegister(ConfigWritesTotal)
	prometheus.MustRegister(ServiceRestartsTotal)
	prometheus.MustRegister(AdminCommandsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
