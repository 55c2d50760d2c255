package report

import (
	"time"

	"github.com/cuemby/shoal/pkg/types"
)

// NodeView is one endpoint's observed state in JSON output
type NodeView struct {
	Addr      string   `json:"addr"`
	Reachable bool     `json:"reachable"`
	Role      string   `json:"role,omitempty"`
	ID        string   `json:"id,omitempty"`
	MasterID  string   `json:"master_id,omitempty"`
	Flags     []string `json:"flags,omitempty"`
}

// PairView groups the two declared endpoints of one pair
type PairView struct {
	Master  NodeView `json:"master"`
	Replica NodeView `json:"replica"`
}

// SnapshotView is the JSON rendering of an observed topology
type SnapshotView struct {
	Timestamp     time.Time  `json:"timestamp"`
	ClusterExists bool       `json:"cluster_exists"`
	Health        string     `json:"health,omitempty"`
	Reference     string     `json:"reference,omitempty"`
	Pairs         []PairView `json:"pairs"`
}

// ActionView is the JSON rendering of one planned action
type ActionView struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Target   string `json:"target"`
	Master   string `json:"master,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// PlanView is the JSON rendering of a plan
type PlanView struct {
	Actions  []ActionView `json:"actions"`
	Work     int          `json:"work"`
	Warnings int          `json:"warnings"`
}

// ResultView is the JSON rendering of one executed action
type ResultView struct {
	Action     ActionView `json:"action"`
	Outcome    string     `json:"outcome"`
	Error      string     `json:"error,omitempty"`
	Attempts   int        `json:"attempts"`
	DurationMS int64      `json:"duration_ms"`
}

// ReportView is the JSON rendering of an execution report
type ReportView struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Applied    int          `json:"applied"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Results    []ResultView `json:"results"`
}

// RunView is the JSON rendering of one journaled run
type RunView struct {
	RunID         string      `json:"run_id"`
	Mode          string      `json:"mode"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    time.Time   `json:"finished_at"`
	ClusterExists bool        `json:"cluster_exists"`
	Health        string      `json:"health,omitempty"`
	Plan          PlanView    `json:"plan"`
	Report        *ReportView `json:"report,omitempty"`
	Converged     bool        `json:"converged"`
}

// NewSnapshotView maps a snapshot onto the declared pairs
func NewSnapshotView(topo *types.Topology, snap *types.Snapshot) SnapshotView {
	view := SnapshotView{
		Timestamp:     snap.Timestamp,
		ClusterExists: snap.ClusterExists,
		Health:        string(snap.Health),
	}
	if snap.ReferenceAddr != nil {
		view.Reference = snap.ReferenceAddr.String()
	}
	for _, pair := range topo.Pairs {
		view.Pairs = append(view.Pairs, PairView{
			Master:  newNodeView(snap, pair.Master),
			Replica: newNodeView(snap, pair.Replica),
		})
	}
	return view
}

func newNodeView(snap *types.Snapshot, addr types.Addr) NodeView {
	view := NodeView{
		Addr:      addr.String(),
		Reachable: snap.Up(addr),
		Role:      string(snap.Roles[addr]),
	}
	if member, ok := snap.Member(addr); ok {
		view.ID = member.ID
		view.MasterID = member.MasterID
		view.Flags = member.Flags
	} else {
		view.ID = snap.SelfIDs[addr]
	}
	return view
}

func newActionView(action types.Action) ActionView {
	view := ActionView{
		Type:     string(action.Type),
		Category: string(action.Category),
		Target:   action.Target.String(),
		Reason:   action.Reason,
	}
	if !action.Master.IsZero() {
		view.Master = action.Master.String()
	}
	return view
}

// NewPlanView converts a plan for JSON output
func NewPlanView(plan types.Plan) PlanView {
	view := PlanView{
		Work:     len(plan.Work()),
		Warnings: len(plan.Warnings()),
	}
	for _, action := range plan.Actions {
		view.Actions = append(view.Actions, newActionView(action))
	}
	return view
}

// NewReportView converts an execution report for JSON output
func NewReportView(rep *types.ExecutionReport) ReportView {
	view := ReportView{
		RunID:      rep.RunID,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
		Applied:    rep.Applied,
		Failed:     rep.Failed,
		Skipped:    rep.Skipped,
	}
	for _, result := range rep.Results {
		view.Results = append(view.Results, ResultView{
			Action:     newActionView(result.Action),
			Outcome:    string(result.Outcome),
			Error:      result.Err,
			Attempts:   result.Attempts,
			DurationMS: result.Duration.Milliseconds(),
		})
	}
	return view
}

// NewRunView converts a journaled run for JSON output
func NewRunView(rec types.RunRecord) RunView {
	view := RunView{
		RunID:         rec.RunID,
		Mode:          string(rec.Mode),
		StartedAt:     rec.StartedAt,
		FinishedAt:    rec.FinishedAt,
		ClusterExists: rec.ClusterExists,
		Health:        string(rec.Health),
		Plan:          NewPlanView(rec.Plan),
		Converged:     rec.Converged,
	}
	if rec.Report != nil {
		report := NewReportView(rec.Report)
		view.Report = &report
	}
	return view
}
