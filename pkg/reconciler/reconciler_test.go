package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/shoal/pkg/journal"
	"github.com/cuemby/shoal/pkg/redistest"
	"github.com/cuemby/shoal/pkg/types"
)

const (
	masterID  = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	replicaID = "dddddddddddddddddddddddddddddddddddddddd"
)

func mustAddr(t *testing.T, s string) types.Addr {
	t.Helper()
	addr, err := types.ParseAddr(s)
	if err != nil {
		t.Fatalf("bad address %q: %v", s, err)
	}
	return addr
}

func topologyFor(t *testing.T, pairs ...[2]*redistest.Node) *types.Topology {
	t.Helper()
	topo := &types.Topology{
		Probe: types.ProbeSettings{
			ConnectTimeout: 500 * time.Millisecond,
			CommandTimeout: 500 * time.Millisecond,
		},
		Failover: types.FailoverSettings{
			Attempts: 5,
			Backoff:  2 * time.Millisecond,
		},
	}
	for _, pair := range pairs {
		topo.Pairs = append(topo.Pairs, types.DesiredPair{
			Master:  mustAddr(t, pair[0].Addr()),
			Replica: mustAddr(t, pair[1].Addr()),
		})
	}
	return topo
}

// scriptPairCluster gives both nodes a membership dump matching the
// declared layout: master owns slots, replica bound to it
func scriptPairCluster(master, replica *redistest.Node) {
	master.SetClusterNodes(
		redistest.Line(master.ID(), master.Addr(), "myself,master", "", "0-16383"),
		redistest.Line(replica.ID(), replica.Addr(), "slave", master.ID()),
	)
	replica.SetClusterNodes(
		redistest.Line(master.ID(), master.Addr(), "master", "", "0-16383"),
		redistest.Line(replica.ID(), replica.Addr(), "myself,slave", master.ID()),
	)
}

func TestRunPlanModeDoesNotMutate(t *testing.T) {
	master := redistest.Start(t, redistest.Config{})
	replica := redistest.Start(t, redistest.Config{})
	topo := topologyFor(t, [2]*redistest.Node{master, replica})

	res, err := New(topo).Run(context.Background(), RunOptions{Mode: types.RunModePlan})

	assert.NoError(t, err)
	rec := res.Record
	assert.Equal(t, types.RunModePlan, rec.Mode)
	assert.False(t, rec.ClusterExists)
	assert.True(t, rec.Plan.HasWork(), "fresh nodes need bootstrap work")
	assert.False(t, rec.Converged)
	assert.Nil(t, rec.Report, "plan mode must not execute")
	if res.Snapshot == nil {
		t.Fatal("run must hand back the snapshot it planned from")
	}
	assert.Empty(t, master.MeetCalls())
	assert.Empty(t, replica.MeetCalls())
	assert.Empty(t, replica.ReplicateCalls())
}

func TestRunHealthyPairNeedsNothing(t *testing.T) {
	master := redistest.Start(t, redistest.Config{ID: masterID, Role: "master"})
	replica := redistest.Start(t, redistest.Config{ID: replicaID, Role: "slave", MasterID: masterID})
	scriptPairCluster(master, replica)
	topo := topologyFor(t, [2]*redistest.Node{master, replica})

	res, err := New(topo).Run(context.Background(), RunOptions{Mode: types.RunModeApply})

	assert.NoError(t, err)
	rec := res.Record
	assert.True(t, rec.ClusterExists)
	assert.Equal(t, types.HealthOK, rec.Health)
	assert.False(t, rec.Plan.HasWork())
	assert.True(t, rec.Converged)
	assert.Nil(t, rec.Report, "a no-op plan skips execution")
}

func TestRunFailsWhenNothingReachable(t *testing.T) {
	master := redistest.Start(t, redistest.Config{})
	replica := redistest.Start(t, redistest.Config{})
	topo := topologyFor(t, [2]*redistest.Node{master, replica})
	master.Stop()
	replica.Stop()

	res, err := New(topo).Run(context.Background(), RunOptions{Mode: types.RunModeApply})

	assert.ErrorContains(t, err, "no declared endpoint is reachable")
	assert.False(t, res.Record.Converged)
	assert.Nil(t, res.Record.Report)
}

func TestRunRecoversFailedOverPair(t *testing.T) {
	// roles are inverted relative to the declared layout: the replica
	// won a failover election while the master was away
	master := redistest.Start(t, redistest.Config{ID: masterID, Role: "slave", MasterID: replicaID})
	replica := redistest.Start(t, redistest.Config{ID: replicaID, Role: "master"})
	scriptPairCluster(master, replica)
	topo := topologyFor(t, [2]*redistest.Node{master, replica})

	store, err := journal.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	defer store.Close()

	res, err := New(topo).WithJournal(store).Run(context.Background(), RunOptions{Mode: types.RunModeApply})

	assert.NoError(t, err)
	rec := res.Record
	if rec.Report == nil {
		t.Fatal("expected recovery work to execute")
	}
	assert.Equal(t, 2, rec.Report.Applied)
	assert.Equal(t, 0, rec.Report.Failed)
	assert.Equal(t, []string{""}, master.FailoverCalls(), "graceful failover on the demoted master")
	assert.Equal(t, []string{masterID}, replica.ReplicateCalls())
	assert.Equal(t, "master", master.Role())
	assert.Equal(t, "slave", replica.Role())
	assert.True(t, rec.Converged, "verification probe should find the pair healthy again")

	runs, err := store.ListRuns(0)
	assert.NoError(t, err)
	if len(runs) != 1 {
		t.Fatalf("expected 1 journaled run, got %d", len(runs))
	}
	assert.Equal(t, rec.RunID, runs[0].RunID)
	assert.True(t, runs[0].Converged)
}

type declineGate struct{}

func (declineGate) Present(*types.Snapshot, types.Plan) (bool, error) { return false, nil }

func TestRunDeclinedPlanExecutesNothing(t *testing.T) {
	master := redistest.Start(t, redistest.Config{})
	replica := redistest.Start(t, redistest.Config{})
	topo := topologyFor(t, [2]*redistest.Node{master, replica})

	store, err := journal.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	defer store.Close()

	res, err := New(topo).WithJournal(store).Run(context.Background(), RunOptions{
		Mode: types.RunModeApply,
		Gate: declineGate{},
	})

	assert.True(t, errors.Is(err, ErrDeclined))
	assert.Nil(t, res.Record.Report)
	assert.Empty(t, master.MeetCalls())
	assert.Empty(t, replica.ReplicateCalls())

	runs, listErr := store.ListRuns(0)
	assert.NoError(t, listErr)
	assert.Len(t, runs, 1, "declined runs still land in the journal")
}

// recordingGate approves everything but remembers what it was shown
// and how much work had already run by then
type recordingGate struct {
	master    *redistest.Node
	plan      *types.Plan
	meetsSeen *int
}

func (g recordingGate) Present(_ *types.Snapshot, plan types.Plan) (bool, error) {
	*g.plan = plan
	*g.meetsSeen = len(g.master.MeetCalls())
	return true, nil
}

func TestRunGatesPlanBeforeExecuting(t *testing.T) {
	master := redistest.Start(t, redistest.Config{})
	replica := redistest.Start(t, redistest.Config{})
	topo := topologyFor(t, [2]*redistest.Node{master, replica})

	var presented types.Plan
	var meetsWhenPresented int
	res, err := New(topo).Run(context.Background(), RunOptions{
		Mode: types.RunModeApply,
		Gate: recordingGate{master: master, plan: &presented, meetsSeen: &meetsWhenPresented},
	})

	assert.NoError(t, err)
	assert.Equal(t, len(res.Record.Plan.Actions), len(presented.Actions))
	assert.Equal(t, 0, meetsWhenPresented, "nothing may execute before the plan is shown")
}

func TestWatchReconcilesUntilCancelled(t *testing.T) {
	master := redistest.Start(t, redistest.Config{ID: masterID, Role: "master"})
	replica := redistest.Start(t, redistest.Config{ID: replicaID, Role: "slave", MasterID: masterID})
	scriptPairCluster(master, replica)
	topo := topologyFor(t, [2]*redistest.Node{master, replica})

	store, err := journal.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(topo).WithJournal(store).Watch(ctx, 20*time.Millisecond)
	}()

	time.Sleep(80 * time.Millisecond)
	cancel()

	select {
	case watchErr := <-done:
		assert.True(t, errors.Is(watchErr, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}

	runs, listErr := store.ListRuns(0)
	assert.NoError(t, listErr)
	if len(runs) < 2 {
		t.Fatalf("expected at least 2 watch iterations, got %d", len(runs))
	}
	for _, run := range runs {
		assert.Equal(t, types.RunModeWatch, run.Mode)
		assert.True(t, run.Converged)
	}
}
