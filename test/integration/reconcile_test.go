package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/cuemby/shoal/pkg/config"
	"github.com/cuemby/shoal/pkg/journal"
	"github.com/cuemby/shoal/pkg/reconciler"
	"github.com/cuemby/shoal/pkg/redistest"
	"github.com/cuemby/shoal/pkg/types"
)

const password = "hunter2"

// topologyYAML renders a two-pair topology file for the given nodes,
// with timeouts tightened for the test run
func topologyYAML(pairs ...[2]*redistest.Node) []byte {
	doc := "auth: " + password + "\npairs:\n"
	for _, pair := range pairs {
		doc += fmt.Sprintf("  - master: %s\n    replica: %s\n", pair[0].Addr(), pair[1].Addr())
	}
	doc += "probe:\n  connect_timeout: 500ms\n  command_timeout: 500ms\n"
	doc += "failover:\n  attempts: 5\n  backoff: 2ms\n"
	return []byte(doc)
}

func startNode(t *testing.T, cfg redistest.Config) *redistest.Node {
	t.Helper()
	cfg.Auth = password
	return redistest.Start(t, cfg)
}

// TestClusterFormation walks the full bootstrap path: parse the
// topology file, plan against empty nodes, apply, and check the
// journal afterwards.
func TestClusterFormation(t *testing.T) {
	m1 := startNode(t, redistest.Config{})
	r1 := startNode(t, redistest.Config{})
	m2 := startNode(t, redistest.Config{})
	r2 := startNode(t, redistest.Config{})

	topo, err := config.Parse(topologyYAML(
		[2]*redistest.Node{m1, r1},
		[2]*redistest.Node{m2, r2},
	))
	if err != nil {
		t.Fatalf("Failed to parse topology: %v", err)
	}

	store, err := journal.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	rec := reconciler.New(topo).WithJournal(store)

	t.Log("Step 1: Planning against empty nodes...")
	planRes, err := rec.Run(ctx, reconciler.RunOptions{Mode: types.RunModePlan})
	if err != nil {
		t.Fatalf("Plan run failed: %v", err)
	}
	if planRes.Record.ClusterExists {
		t.Fatal("No cluster should be discovered on fresh nodes")
	}
	if got := len(planRes.Record.Plan.Work()); got != 4 {
		t.Fatalf("Expected 4 bootstrap actions (2 masters, 2 replicas), got %d", got)
	}
	if len(m1.MeetCalls()) != 0 {
		t.Fatal("Plan mode must not issue CLUSTER MEET")
	}
	t.Log("✓ Plan proposes a 4-action bootstrap without touching the nodes")

	t.Log("Step 2: Applying the bootstrap...")
	applyRes, err := rec.Run(ctx, reconciler.RunOptions{Mode: types.RunModeApply})
	if err != nil {
		t.Fatalf("Apply run failed: %v", err)
	}
	record := applyRes.Record
	if record.Report == nil {
		t.Fatal("Apply should have executed the plan")
	}
	if record.Report.Applied != 4 || record.Report.Failed != 0 {
		t.Fatalf("Expected 4 applied and 0 failed, got %d/%d", record.Report.Applied, record.Report.Failed)
	}
	t.Log("✓ All 4 actions applied")

	t.Log("Step 3: Checking the introductions went through the seed...")
	seedMeets := m1.MeetCalls()
	if len(seedMeets) != 3 {
		t.Fatalf("Expected the seed to meet the 3 other nodes, got %v", seedMeets)
	}
	if seedMeets[0] != m2.Addr() {
		t.Errorf("Second master should be met first, got %v", seedMeets)
	}
	t.Log("✓ Seed master introduced every other node")

	t.Log("Step 4: Checking replica bindings...")
	if r1.Role() != "slave" || r1.MasterID() != m1.ID() {
		t.Errorf("Replica 1 should replicate master 1, got role=%s master=%s", r1.Role(), r1.MasterID())
	}
	if r2.Role() != "slave" || r2.MasterID() != m2.ID() {
		t.Errorf("Replica 2 should replicate master 2, got role=%s master=%s", r2.Role(), r2.MasterID())
	}
	t.Log("✓ Both replicas bound to their declared masters")

	t.Log("Step 5: Checking the journal...")
	saved, err := store.GetRun(record.RunID)
	if err != nil {
		t.Fatalf("Failed to load journaled run: %v", err)
	}
	if saved.Report == nil || saved.Report.Applied != 4 {
		t.Errorf("Journaled run should carry the execution report")
	}
	t.Log("✓ Run recorded in the journal")
}

// TestFailbackRoundTrip covers the aftermath of an unplanned failover:
// the declared master came back as a replica of its own replica. One
// apply restores the declared roles, a second apply finds nothing to do.
func TestFailbackRoundTrip(t *testing.T) {
	master := startNode(t, redistest.Config{Role: "master"})
	replica := startNode(t, redistest.Config{Role: "master"})
	master.SetRole("slave")
	master.SetMasterID(replica.ID())

	// both nodes agree on the declared membership; only the live
	// roles are inverted
	master.SetClusterNodes(
		redistest.Line(master.ID(), master.Addr(), "myself,master", "", "0-16383"),
		redistest.Line(replica.ID(), replica.Addr(), "slave", master.ID()),
	)
	replica.SetClusterNodes(
		redistest.Line(master.ID(), master.Addr(), "master", "", "0-16383"),
		redistest.Line(replica.ID(), replica.Addr(), "myself,slave", master.ID()),
	)

	topo, err := config.Parse(topologyYAML([2]*redistest.Node{master, replica}))
	if err != nil {
		t.Fatalf("Failed to parse topology: %v", err)
	}

	store, err := journal.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	rec := reconciler.New(topo).WithJournal(store)

	t.Log("Step 1: Applying the restoration...")
	first, err := rec.Run(ctx, reconciler.RunOptions{Mode: types.RunModeApply})
	if err != nil {
		t.Fatalf("Apply run failed: %v", err)
	}
	if first.Record.Report == nil || first.Record.Report.Applied != 2 {
		t.Fatalf("Expected restore-master plus rebind-replica to apply, got %+v", first.Record.Report)
	}
	if !first.Record.Converged {
		t.Fatal("Verification probe should confirm the declared roles")
	}
	t.Log("✓ Declared master promoted and replica rebound")

	t.Log("Step 2: Checking live roles...")
	if master.Role() != "master" {
		t.Errorf("Declared master should be master again, got %s", master.Role())
	}
	if replica.Role() != "slave" || replica.MasterID() != master.ID() {
		t.Errorf("Replica should follow the declared master, got role=%s master=%s", replica.Role(), replica.MasterID())
	}
	t.Log("✓ Roles match the declaration")

	t.Log("Step 3: Applying again to confirm idempotence...")
	failovers := len(master.FailoverCalls())
	replicates := len(replica.ReplicateCalls())

	second, err := rec.Run(ctx, reconciler.RunOptions{Mode: types.RunModeApply})
	if err != nil {
		t.Fatalf("Second apply failed: %v", err)
	}
	if second.Record.Report != nil {
		t.Fatal("A converged cluster must plan no work")
	}
	if !second.Record.Converged {
		t.Fatal("Second run should report converged")
	}
	if len(master.FailoverCalls()) != failovers || len(replica.ReplicateCalls()) != replicates {
		t.Fatal("Second run must not issue any admin command")
	}
	t.Log("✓ Second run was a no-op")

	t.Log("Step 4: Checking journal order...")
	runs, err := store.ListRuns(0)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 journaled runs, got %d", len(runs))
	}
	if runs[0].RunID != second.Record.RunID {
		t.Error("Newest run should list first")
	}
	t.Log("✓ Both runs journaled, newest first")
}

// TestDegradedPairWarns covers a live cluster with one replica down:
// the planner must warn and leave the pair alone.
func TestDegradedPairWarns(t *testing.T) {
	master := startNode(t, redistest.Config{Role: "master"})
	replica := startNode(t, redistest.Config{})
	master.SetClusterNodes(
		redistest.Line(master.ID(), master.Addr(), "myself,master", "", "0-16383"),
		redistest.Line(replica.ID(), replica.Addr(), "slave", master.ID()),
	)
	replicaAddr := replica.Addr()

	topo, err := config.Parse(topologyYAML([2]*redistest.Node{master, replica}))
	if err != nil {
		t.Fatalf("Failed to parse topology: %v", err)
	}

	t.Log("Step 1: Taking the replica down...")
	replica.Stop()

	t.Log("Step 2: Applying...")
	res, err := reconciler.New(topo).Run(context.Background(), reconciler.RunOptions{Mode: types.RunModeApply})
	if err != nil {
		t.Fatalf("Apply run failed: %v", err)
	}
	record := res.Record

	if record.Plan.HasWork() {
		t.Fatalf("A down replica must not trigger actions, got %v", record.Plan.Work())
	}
	if len(record.Plan.Warnings()) == 0 {
		t.Fatal("Expected a warning about the unreachable replica")
	}
	if record.Report != nil {
		t.Fatal("Nothing should execute")
	}
	if !res.Snapshot.Up(mustParse(t, master.Addr())) {
		t.Error("Master should still probe as up")
	}
	if res.Snapshot.Up(mustParse(t, replicaAddr)) {
		t.Error("Down replica should probe as down")
	}
	t.Log("✓ Outage reported as a warning, no action taken")
}

// TestWrongPasswordIsFatal covers a topology file with a bad auth
// value: every probe fails, and the run refuses to continue.
func TestWrongPasswordIsFatal(t *testing.T) {
	master := startNode(t, redistest.Config{})
	replica := startNode(t, redistest.Config{})

	doc := fmt.Sprintf("auth: not-the-password\npairs:\n  - master: %s\n    replica: %s\n", master.Addr(), replica.Addr())
	doc += "probe:\n  connect_timeout: 500ms\n  command_timeout: 500ms\n"

	topo, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Failed to parse topology: %v", err)
	}

	_, err = reconciler.New(topo).Run(context.Background(), reconciler.RunOptions{Mode: types.RunModeApply})
	if err == nil {
		t.Fatal("A fully unauthenticated topology must fail the run")
	}
	t.Logf("✓ Run refused: %v", err)
}

func mustParse(t *testing.T, s string) types.Addr {
	t.Helper()
	addr, err := types.ParseAddr(s)
	if err != nil {
		t.Fatalf("bad address %q: %v", s, err)
	}
	return addr
}
