package metrics

import (
	"github.com/cuemby/shoal/pkg/types"
)

// RecordSnapshot publishes reachability and cluster gauges from one
// discovery pass
func RecordSnapshot(topo *types.Topology, snap *types.Snapshot) {
	if snap.ClusterExists {
		ClusterFound.Set(1)
	} else {
		ClusterFound.Set(0)
	}
	if snap.Health == types.HealthOK {
		ClusterStateOK.Set(1)
	} else {
		ClusterStateOK.Set(0)
	}

	for _, addr := range topo.Endpoints() {
		v := 0.0
		if snap.Up(addr) {
			v = 1
		}
		NodeReachable.WithLabelValues(addr.String()).Set(v)
	}
}

// RecordPlan publishes per-category counts for the latest plan.
// Categories absent from the plan are reset so stale series drop out.
func RecordPlan(plan types.Plan) {
	PairsTotal.Reset()
	for category, count := range plan.Counts() {
		PairsTotal.WithLabelValues(string(category)).Set(float64(count))
	}
}

// RecordReport publishes action counters and latencies from one
// execution pass
func RecordReport(rep *types.ExecutionReport) {
	for _, result := range rep.Results {
		if result.Action.Type == types.ActionNoOp {
			continue
		}
		name := string(result.Action.Type)
		ActionsTotal.WithLabelValues(name, string(result.Outcome)).Inc()
		ActionDuration.WithLabelValues(name).Observe(result.Duration.Seconds())
	}
}

// RecordRun counts a finished run by mode and result
func RecordRun(mode types.RunMode, result string) {
	RunsTotal.WithLabelValues(string(mode), result).Inc()
}
