package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/shoal/pkg/log"
	"github.com/cuemby/shoal/pkg/redis"
	"github.com/cuemby/shoal/pkg/types"
)

// Executor applies a plan sequentially against the admin surface.
// Actions run in plan order; a failed action is recorded and the batch
// continues, so one sick node cannot block convergence elsewhere.
type Executor struct {
	factory redis.Factory
	topo    *types.Topology
	logger  zerolog.Logger
}

// New creates an executor bound to a topology's settings
func New(factory redis.Factory, topo *types.Topology) *Executor {
	return &Executor{
		factory: factory,
		topo:    topo,
		logger:  log.WithComponent("executor"),
	}
}

// batchState carries what one Execute pass learns as it goes
type batchState struct {
	reference      types.Addr
	hasReference   bool
	clusterExists  bool
	failedRestores map[types.Addr]bool
}

// Execute applies every action in order and reports per-action
// outcomes. No-op actions are recorded as skipped with their reason.
func (e *Executor) Execute(ctx context.Context, runID string, snap *types.Snapshot, plan types.Plan) *types.ExecutionReport {
	report := &types.ExecutionReport{
		RunID:     runID,
		StartedAt: time.Now(),
	}

	state := &batchState{
		clusterExists:  snap.ClusterExists,
		failedRestores: make(map[types.Addr]bool),
	}
	state.reference, state.hasReference = e.pickReference(snap)

	logger := e.logger.With().Str("run_id", runID).Logger()
	if state.hasReference {
		logger.Debug().Str("reference", state.reference.String()).Msg("reference node selected")
	}

	for _, action := range plan.Actions {
		result := e.apply(ctx, logger, state, snap, action)
		report.Results = append(report.Results, result)
		switch result.Outcome {
		case types.OutcomeApplied:
			report.Applied++
		case types.OutcomeFailed:
			report.Failed++
		case types.OutcomeSkipped:
			report.Skipped++
		}
	}

	report.FinishedAt = time.Now()
	logger.Info().
		Int("applied", report.Applied).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("plan executed")
	return report
}

// pickReference chooses the node new members are introduced through:
// the snapshot's reference when a cluster exists, else the first
// reachable declared master as the bootstrap seed.
func (e *Executor) pickReference(snap *types.Snapshot) (types.Addr, bool) {
	if snap.ClusterExists && snap.ReferenceAddr != nil {
		return *snap.ReferenceAddr, true
	}
	for _, pair := range e.topo.Pairs {
		if snap.Up(pair.Master) {
			return pair.Master, true
		}
	}
	return types.Addr{}, false
}

func (e *Executor) apply(ctx context.Context, logger zerolog.Logger, state *batchState, snap *types.Snapshot, action types.Action) types.ActionResult {
	started := time.Now()
	result := types.ActionResult{Action: action, Attempts: 1}

	switch action.Type {
	case types.ActionNoOp:
		result.Outcome = types.OutcomeSkipped

	case types.ActionAddMaster:
		e.addMaster(ctx, state, action, &result)

	case types.ActionAddReplica:
		e.addReplica(ctx, state, snap, action, &result)

	case types.ActionRestoreMaster:
		e.restoreMaster(ctx, state, action, &result)

	case types.ActionRebindReplica:
		e.rebindReplica(ctx, state, snap, action, &result)

	default:
		result.Outcome = types.OutcomeFailed
		result.Err = fmt.Sprintf("unknown action type %q", action.Type)
	}

	result.Duration = time.Since(started)

	event := logger.Info()
	if result.Outcome == types.OutcomeFailed {
		event = logger.Error()
	}
	event.
		Str("action", string(action.Type)).
		Str("category", string(action.Category)).
		Str("target", action.Target.String()).
		Str("outcome", string(result.Outcome)).
		Int("attempts", result.Attempts).
		Str("error", result.Err).
		Msg("action finished")

	return result
}

// addMaster introduces the target to the cluster through the
// reference node. Introducing the reference to itself is the seed of a
// bootstrap and succeeds by definition.
func (e *Executor) addMaster(ctx context.Context, state *batchState, action types.Action, result *types.ActionResult) {
	if !state.hasReference {
		result.Outcome = types.OutcomeFailed
		result.Err = "no reachable node to introduce members through"
		return
	}
	if action.Target == state.reference {
		result.Outcome = types.OutcomeApplied
		return
	}

	err := e.factory(state.reference).ClusterMeet(ctx, action.Target.Host, action.Target.Port)
	if err != nil && !alreadySatisfied(err) {
		result.Outcome = types.OutcomeFailed
		result.Err = err.Error()
		return
	}
	result.Outcome = types.OutcomeApplied
}

// addReplica ensures the target is a member, resolves the declared
// master's node ID, and binds the target to it. The bind retries with
// backoff while the membership handshake propagates.
func (e *Executor) addReplica(ctx context.Context, state *batchState, snap *types.Snapshot, action types.Action, result *types.ActionResult) {
	if !state.hasReference {
		result.Outcome = types.OutcomeFailed
		result.Err = "no reachable node to introduce members through"
		return
	}

	if action.Target != state.reference {
		err := e.factory(state.reference).ClusterMeet(ctx, action.Target.Host, action.Target.Port)
		if err != nil && !alreadySatisfied(err) {
			result.Outcome = types.OutcomeFailed
			result.Err = fmt.Sprintf("introduce %s: %v", action.Target, err)
			return
		}
	}

	masterID, err := e.resolveMasterID(ctx, snap, action.Master)
	if err != nil {
		result.Outcome = types.OutcomeFailed
		result.Err = err.Error()
		return
	}

	e.replicateWithRetry(ctx, action.Target, masterID, result)
}

// restoreMaster returns the declared master role to the target via a
// coordinated failover, then polls the target's own role until it
// reports master or the attempt budget runs out. The two terminal
// states are promoted and timed out; there is no open-ended wait.
func (e *Executor) restoreMaster(ctx context.Context, state *batchState, action types.Action, result *types.ActionResult) {
	admin := e.factory(action.Target)

	role, err := admin.Role(ctx)
	if err == nil && role == types.RoleMaster {
		result.Outcome = types.OutcomeApplied
		return
	}

	if err := admin.ClusterFailover(ctx, redis.FailoverGraceful); err != nil && !alreadySatisfied(err) {
		state.failedRestores[action.Target] = true
		result.Outcome = types.OutcomeFailed
		result.Err = fmt.Sprintf("failover: %v", err)
		return
	}

	attempts := e.topo.Failover.Attempts
	backoff := e.topo.Failover.Backoff
	for i := 0; i < attempts; i++ {
		result.Attempts = i + 1
		role, err := admin.Role(ctx)
		if err == nil && role == types.RoleMaster {
			result.Outcome = types.OutcomeApplied
			return
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				state.failedRestores[action.Target] = true
				result.Outcome = types.OutcomeFailed
				result.Err = ctx.Err().Error()
				return
			case <-time.After(backoff):
			}
		}
	}

	state.failedRestores[action.Target] = true
	result.Outcome = types.OutcomeFailed
	result.Err = fmt.Sprintf("promotion not observed after %d polls", attempts)
}

// rebindReplica points the target back at its declared master. When
// the paired restoration did not complete the rebind is skipped, not
// failed: rebinding to a node that never retook mastership would
// detach the replica from the data it guards.
func (e *Executor) rebindReplica(ctx context.Context, state *batchState, snap *types.Snapshot, action types.Action, result *types.ActionResult) {
	if state.failedRestores[action.Master] {
		result.Outcome = types.OutcomeSkipped
		result.Err = fmt.Sprintf("restoration of %s did not complete", action.Master)
		return
	}

	masterID, err := e.resolveMasterID(ctx, snap, action.Master)
	if err != nil {
		result.Outcome = types.OutcomeFailed
		result.Err = err.Error()
		return
	}

	e.replicateWithRetry(ctx, action.Target, masterID, result)
}

// resolveMasterID finds a master's node ID from the snapshot, falling
// back to asking the node itself
func (e *Executor) resolveMasterID(ctx context.Context, snap *types.Snapshot, master types.Addr) (string, error) {
	if id := snap.NodeID(master); id != "" {
		return id, nil
	}
	id, err := e.factory(master).ClusterMyID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve identity of %s: %v", master, err)
	}
	return id, nil
}

// replicateWithRetry issues CLUSTER REPLICATE on the target, retrying
// with backoff while membership gossip catches up
func (e *Executor) replicateWithRetry(ctx context.Context, target types.Addr, masterID string, result *types.ActionResult) {
	admin := e.factory(target)
	attempts := e.topo.Failover.Attempts
	backoff := e.topo.Failover.Backoff

	var lastErr error
	for i := 0; i < attempts; i++ {
		result.Attempts = i + 1
		err := admin.ClusterReplicate(ctx, masterID)
		if err == nil || alreadySatisfied(err) {
			result.Outcome = types.OutcomeApplied
			return
		}
		lastErr = err
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				result.Outcome = types.OutcomeFailed
				result.Err = ctx.Err().Error()
				return
			case <-time.After(backoff):
			}
		}
	}

	result.Outcome = types.OutcomeFailed
	result.Err = fmt.Sprintf("replicate %s: %v", masterID, lastErr)
}

// alreadySatisfied reports whether an admin error means the requested
// state already holds, which counts as success for idempotent actions
func alreadySatisfied(err error) bool {
	var cmdErr *redis.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return strings.Contains(strings.ToLower(cmdErr.Reply), "already")
}
