package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run metrics
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoal_runs_total",
			Help: "Total number of reconciliation runs by mode and result",
		},
		[]string{"mode", "result"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shoal_run_duration_seconds",
			Help:    "Duration of a full reconciliation run in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Action metrics
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoal_actions_total",
			Help: "Total number of executed actions by type and outcome",
		},
		[]string{"action", "outcome"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shoal_action_duration_seconds",
			Help:    "Duration of individual actions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// Topology metrics
	ClusterFound = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shoal_cluster_found",
			Help: "Whether a cluster was discovered during the last probe (1 = found)",
		},
	)

	ClusterStateOK = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shoal_cluster_state_ok",
			Help: "Whether the discovered cluster reports state ok (1 = ok)",
		},
	)

	NodeReachable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shoal_node_reachable",
			Help: "Whether a declared node answered its probe (1 = reachable)",
		},
		[]string{"addr"},
	)

	PairsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shoal_pairs_total",
			Help: "Number of planned outcomes per pair category in the last run",
		},
		[]string{"category"},
	)

	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shoal_probe_duration_seconds",
			Help:    "Duration of the discovery pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(ActionDuration)
	prometheus.MustRegister(ClusterFound)
	prometheus.MustRegister(ClusterStateOK)
	prometheus.MustRegister(NodeReachable)
	prometheus.MustRegister(PairsTotal)
	prometheus.MustRegister(ProbeDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
