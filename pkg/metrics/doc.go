/*
Package metrics provides Prometheus metrics and the watch-mode health
endpoint.

All metrics are registered on the default registry at package init and
exposed through Handler(). The reconciler publishes them through the
Record helpers after each phase of a run; nothing in this package
polls.

# Metrics Catalog

shoal_runs_total{mode, result}:
  - Type: Counter
  - Description: Reconciliation runs by mode (plan/apply/watch) and
    result (converged/work-remaining/failed/declined)
  - Example: shoal_runs_total{mode="watch",result="converged"} 1441

shoal_run_duration_seconds:
  - Type: Histogram
  - Description: Wall time of a full run, probe through verification

shoal_actions_total{action, outcome}:
  - Type: Counter
  - Description: Executed actions by type and outcome
  - Example: shoal_actions_total{action="restore-master",outcome="applied"} 3

shoal_action_duration_seconds{action}:
  - Type: Histogram
  - Description: Per-action execution time, including retries

shoal_cluster_found:
  - Type: Gauge
  - Description: 1 when the last probe discovered a cluster

shoal_cluster_state_ok:
  - Type: Gauge
  - Description: 1 when the discovered cluster reports state ok

shoal_node_reachable{addr}:
  - Type: Gauge
  - Description: 1 when the declared node answered its probe

shoal_pairs_total{category}:
  - Type: Gauge
  - Description: Planned outcome counts per category in the last run

shoal_probe_duration_seconds:
  - Type: Histogram
  - Description: Wall time of the discovery pass

# Timer Pattern

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.RunDuration)
	timer.ObserveDurationVec(metrics.ActionDuration, "add-replica")

# Health Endpoint

Watch mode serves /healthz next to /metrics. It answers 200 once the
latest run converged and 503 while work remains, so the same probe
configuration covers both liveness and convergence alerting.

# Monitoring

Useful queries:

  - Convergence: max(shoal_cluster_state_ok) == 1
  - Unreachable nodes: sum(1 - shoal_node_reachable)
  - Failure rate: rate(shoal_actions_total{outcome="failed"}[15m])
  - p95 run time: histogram_quantile(0.95, shoal_run_duration_seconds_bucket)
*/
package metrics
