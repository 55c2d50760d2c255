package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/shoal/pkg/executor"
	"github.com/cuemby/shoal/pkg/gate"
	"github.com/cuemby/shoal/pkg/journal"
	"github.com/cuemby/shoal/pkg/log"
	"github.com/cuemby/shoal/pkg/metrics"
	"github.com/cuemby/shoal/pkg/planner"
	"github.com/cuemby/shoal/pkg/probe"
	"github.com/cuemby/shoal/pkg/redis"
	"github.com/cuemby/shoal/pkg/snapshot"
	"github.com/cuemby/shoal/pkg/types"
)

// ErrDeclined is returned by Run when the gate refuses the plan
var ErrDeclined = errors.New("apply declined")

// Reconciler drives the probe, plan, gate, execute, verify cycle
// against one declared topology
type Reconciler struct {
	topo    *types.Topology
	factory redis.Factory
	prober  *probe.Prober
	builder *snapshot.Builder
	exec    *executor.Executor
	store   *journal.Store
	logger  zerolog.Logger
}

// New creates a reconciler for the declared topology
func New(topo *types.Topology) *Reconciler {
	r := &Reconciler{
		topo:   topo,
		logger: log.WithComponent("reconciler"),
	}
	return r.WithFactory(redis.NewFactory(topo))
}

// WithFactory replaces the admin connection factory
func (r *Reconciler) WithFactory(factory redis.Factory) *Reconciler {
	r.factory = factory
	r.prober = probe.New(factory)
	r.builder = snapshot.NewBuilder()
	r.exec = executor.New(factory, r.topo)
	return r
}

// WithJournal persists a record of every run to the given store
func (r *Reconciler) WithJournal(store *journal.Store) *Reconciler {
	r.store = store
	return r
}

// RunOptions selects the mode and approval path for one run
type RunOptions struct {
	Mode types.RunMode
	Gate gate.Gate // nil approves everything silently
}

// Result bundles the journaled record with the snapshot that
// produced it
type Result struct {
	Record   types.RunRecord
	Snapshot *types.Snapshot
}

// Observe probes every declared endpoint and assembles a snapshot
func (r *Reconciler) Observe(ctx context.Context) *types.Snapshot {
	timer := metrics.NewTimer()
	results := r.prober.ProbeAll(ctx, r.topo.Endpoints())
	snap := r.builder.Build(r.topo, results)
	timer.ObserveDuration(metrics.ProbeDuration)
	metrics.RecordSnapshot(r.topo, snap)
	return snap
}

// Run performs one full reconciliation pass. Plan mode stops after
// planning; apply and watch modes present the plan to the gate, execute
// approved work, and verify convergence with a second probe.
func (r *Reconciler) Run(ctx context.Context, opts RunOptions) (Result, error) {
	runID := uuid.New().String()
	logger := r.logger.With().Str("run_id", runID).Logger()
	timer := metrics.NewTimer()

	rec := types.RunRecord{
		RunID:     runID,
		Mode:      opts.Mode,
		StartedAt: time.Now(),
	}

	snap := r.Observe(ctx)
	rec.ClusterExists = snap.ClusterExists
	rec.Health = snap.Health

	if !snap.AnyUp() {
		logger.Error().Msg("no declared endpoint is reachable")
		return r.finish(rec, snap, timer, errors.New("no declared endpoint is reachable"))
	}

	plan := planner.Plan(r.topo, snap)
	metrics.RecordPlan(plan)
	rec.Plan = plan

	logger.Info().
		Bool("cluster_exists", snap.ClusterExists).
		Str("health", string(snap.Health)).
		Int("work", len(plan.Work())).
		Int("warnings", len(plan.Warnings())).
		Msg("topology planned")

	if opts.Mode == types.RunModePlan {
		rec.Converged = !plan.HasWork()
		return r.finish(rec, snap, timer, nil)
	}

	approver := opts.Gate
	if approver == nil {
		approver = gate.AutoApprove{}
	}
	approved, err := approver.Present(snap, plan)
	if err != nil {
		return r.finish(rec, snap, timer, err)
	}
	if !approved {
		logger.Info().Msg("plan declined")
		return r.finish(rec, snap, timer, ErrDeclined)
	}

	if plan.HasWork() {
		report := r.exec.Execute(ctx, runID, snap, plan)
		rec.Report = report
		metrics.RecordReport(report)

		// verify with a fresh probe instead of trusting the executor
		verify := planner.Plan(r.topo, r.Observe(ctx))
		rec.Converged = !verify.HasWork()
	} else {
		rec.Converged = true
	}

	return r.finish(rec, snap, timer, nil)
}

// finish stamps the record, then publishes it to the journal and
// metrics
func (r *Reconciler) finish(rec types.RunRecord, snap *types.Snapshot, timer *metrics.Timer, err error) (Result, error) {
	rec.FinishedAt = time.Now()
	timer.ObserveDuration(metrics.RunDuration)
	metrics.RecordRun(rec.Mode, resultLabel(rec, err))

	if r.store != nil {
		if saveErr := r.store.SaveRun(&rec); saveErr != nil {
			r.logger.Error().Err(saveErr).Str("run_id", rec.RunID).Msg("failed to journal run")
		}
	}
	return Result{Record: rec, Snapshot: snap}, err
}

func resultLabel(rec types.RunRecord, err error) string {
	switch {
	case errors.Is(err, ErrDeclined):
		return "declined"
	case err != nil:
		return "failed"
	case rec.Report != nil && rec.Report.Failed > 0:
		return "failed"
	case !rec.Converged:
		return "work-remaining"
	default:
		return "converged"
	}
}

// Watch reconciles on a fixed interval until the context is
// cancelled. Every iteration auto-approves its plan; an operator who
// wants a confirmation step runs apply instead.
func (r *Reconciler) Watch(ctx context.Context, interval time.Duration) error {
	logger := r.logger.With().Dur("interval", interval).Logger()
	logger.Info().Msg("watch started")

	r.watchOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.watchOnce(ctx)
		case <-ctx.Done():
			logger.Info().Msg("watch stopped")
			return ctx.Err()
		}
	}
}

func (r *Reconciler) watchOnce(ctx context.Context) {
	res, err := r.Run(ctx, RunOptions{Mode: types.RunModeWatch})
	if err != nil {
		r.logger.Error().Err(err).Msg("watch iteration failed")
		return
	}

	rec := res.Record
	metrics.RecordWatchRun(rec.RunID, rec.ClusterExists, rec.Converged)

	event := r.logger.Info()
	if rec.Report != nil {
		event = event.
			Int("applied", rec.Report.Applied).
			Int("failed", rec.Report.Failed).
			Int("skipped", rec.Report.Skipped)
	}
	event.
		Bool("converged", rec.Converged).
		Str("run_id", rec.RunID).
		Msg("watch iteration finished")
}
