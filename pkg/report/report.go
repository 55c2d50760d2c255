package report

import (
	"fmt"
	"io"
	"time"

	"github.com/cuemby/shoal/pkg/types"
)

// shortID trims a 40-hex node ID down to something a human can scan
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	if id == "" {
		return "-"
	}
	return id
}

func reachMark(snap *types.Snapshot, addr types.Addr) string {
	if snap.Up(addr) {
		return "up"
	}
	return "down"
}

// WriteSnapshot renders the observed cluster state against the
// declared pairs. It reports facts only; judgment about what to do
// about them belongs to the plan.
func WriteSnapshot(w io.Writer, topo *types.Topology, snap *types.Snapshot) {
	if snap.ClusterExists {
		fmt.Fprintf(w, "Cluster: found via %s (state %s)\n", snap.ReferenceAddr, snap.Health)
	} else {
		fmt.Fprintln(w, "Cluster: not found (bootstrap required)")
	}

	fmt.Fprintln(w, "Pairs:")
	for i, pair := range topo.Pairs {
		fmt.Fprintf(w, "  %d. master  %s\n", i+1, nodeLine(snap, pair.Master))
		fmt.Fprintf(w, "     replica %s\n", nodeLine(snap, pair.Replica))
	}
}

func nodeLine(snap *types.Snapshot, addr types.Addr) string {
	role := string(snap.Roles[addr])
	if role == "" {
		role = "unknown"
	}
	line := fmt.Sprintf("%-21s %-4s role=%s", addr, reachMark(snap, addr), role)
	member, ok := snap.Member(addr)
	if !ok {
		if id := snap.SelfIDs[addr]; id != "" {
			return line + fmt.Sprintf(" id=%s (not a member)", shortID(id))
		}
		return line
	}
	line += " id=" + shortID(member.ID)
	if member.MasterID != "" {
		line += " -> " + shortID(member.MasterID)
	}
	if member.Failing() {
		line += " [fail]"
	} else if member.Suspect() {
		line += " [fail?]"
	}
	return line
}

// WritePlan renders the work a plan would perform, its warnings, and
// the bootstrap slot note when new masters are founded
func WritePlan(w io.Writer, plan types.Plan) {
	work := plan.Work()
	if len(work) == 0 {
		fmt.Fprintln(w, "Nothing to do. The cluster matches the declared topology.")
	} else {
		fmt.Fprintf(w, "Plan: %d action(s)\n", len(work))
		for i, action := range work {
			fmt.Fprintf(w, "  %d. %s %s%s (%s)\n", i+1, action.Type, action.Target, planTail(action), action.Category)
			if action.Reason != "" {
				fmt.Fprintf(w, "     %s\n", action.Reason)
			}
		}
	}

	if warnings := plan.Warnings(); len(warnings) > 0 {
		fmt.Fprintln(w, "Attention:")
		for _, warning := range warnings {
			fmt.Fprintf(w, "  ! %s: %s\n", warning.Target, warning.Reason)
		}
	}

	if plan.Counts()[types.CategoryBootstrap] > 0 {
		fmt.Fprintln(w, "Note: founded masters own no hash slots; assign slots once the formation settles.")
	}
}

func planTail(action types.Action) string {
	switch action.Type {
	case types.ActionAddReplica, types.ActionRebindReplica:
		return " of " + action.Master.String()
	default:
		return ""
	}
}

// WriteExecution renders per-action outcomes and the final tally
func WriteExecution(w io.Writer, rep *types.ExecutionReport) {
	for _, result := range rep.Results {
		if result.Action.Type == types.ActionNoOp {
			continue
		}
		switch result.Outcome {
		case types.OutcomeApplied:
			fmt.Fprintf(w, "✓ %s %s\n", result.Action.Type, result.Action.Target)
		case types.OutcomeFailed:
			fmt.Fprintf(w, "✗ %s %s: %s\n", result.Action.Type, result.Action.Target, result.Err)
		case types.OutcomeSkipped:
			fmt.Fprintf(w, "- %s %s: %s\n", result.Action.Type, result.Action.Target, result.Err)
		}
	}
	fmt.Fprintf(w, "Applied: %d, Failed: %d, Skipped: %d (%.2fs)\n",
		rep.Applied, rep.Failed, rep.Skipped,
		rep.FinishedAt.Sub(rep.StartedAt).Seconds())
}

// WriteRun renders one journal entry as a history line with details
func WriteRun(w io.Writer, rec types.RunRecord) {
	converged := "no"
	if rec.Converged {
		converged = "yes"
	}
	fmt.Fprintf(w, "%s  %s  %-5s  work=%d  converged=%s\n",
		rec.RunID, rec.StartedAt.Format(time.RFC3339), rec.Mode,
		len(rec.Plan.Work()), converged)
}

// WriteRunDetail renders one journal entry in full
func WriteRunDetail(w io.Writer, rec types.RunRecord) {
	fmt.Fprintf(w, "Run:       %s\n", rec.RunID)
	fmt.Fprintf(w, "Mode:      %s\n", rec.Mode)
	fmt.Fprintf(w, "Started:   %s\n", rec.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Finished:  %s\n", rec.FinishedAt.Format(time.RFC3339))
	if rec.ClusterExists {
		fmt.Fprintf(w, "Cluster:   found (state %s)\n", rec.Health)
	} else {
		fmt.Fprintln(w, "Cluster:   not found")
	}
	WritePlan(w, rec.Plan)
	if rec.Report != nil {
		WriteExecution(w, rec.Report)
	}
	fmt.Fprintf(w, "Converged: %v\n", rec.Converged)
}
