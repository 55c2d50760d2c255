package planner

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/shoal/pkg/types"
)

var (
	m1 = types.Addr{Host: "10.0.0.1", Port: 6379}
	m2 = types.Addr{Host: "10.0.0.2", Port: 6379}
	m3 = types.Addr{Host: "10.0.0.3", Port: 6379}
	r1 = types.Addr{Host: "10.0.0.4", Port: 6379}
	r2 = types.Addr{Host: "10.0.0.5", Port: 6379}
	r3 = types.Addr{Host: "10.0.0.6", Port: 6379}

	ids = map[types.Addr]string{
		m1: "aaa", m2: "bbb", m3: "ccc",
		r1: "ddd", r2: "eee", r3: "fff",
	}
)

func pairTopology() *types.Topology {
	return &types.Topology{
		Auth: "pw",
		Pairs: []types.DesiredPair{
			{Master: m1, Replica: r1},
			{Master: m2, Replica: r2},
			{Master: m3, Replica: r3},
		},
	}
}

func member(addr types.Addr, flags, masterID string) types.ClusterMember {
	return types.ClusterMember{
		ID:        ids[addr],
		Addr:      addr,
		Flags:     strings.Split(flags, ","),
		MasterID:  masterID,
		LinkState: "connected",
	}
}

// healthySnap models a fully converged three-pair cluster
func healthySnap() *types.Snapshot {
	ref := m1
	snap := &types.Snapshot{
		Timestamp:     time.Now(),
		ClusterExists: true,
		Health:        types.HealthOK,
		ReferenceAddr: &ref,
		Members:       make(map[types.Addr]types.ClusterMember),
		Reachability:  make(map[types.Addr]types.Reachability),
		Roles:         make(map[types.Addr]types.Role),
		SelfIDs:       make(map[types.Addr]string),
	}
	for _, pair := range pairTopology().Pairs {
		snap.Members[pair.Master] = member(pair.Master, "master", "")
		snap.Members[pair.Replica] = member(pair.Replica, "slave", ids[pair.Master])
		snap.Reachability[pair.Master] = types.ReachabilityUp
		snap.Reachability[pair.Replica] = types.ReachabilityUp
		snap.Roles[pair.Master] = types.RoleMaster
		snap.Roles[pair.Replica] = types.RoleReplica
		snap.SelfIDs[pair.Master] = ids[pair.Master]
		snap.SelfIDs[pair.Replica] = ids[pair.Replica]
	}
	return snap
}

// bootstrapSnap models nodes that have never formed a cluster
func bootstrapSnap(up ...types.Addr) *types.Snapshot {
	snap := &types.Snapshot{
		Timestamp:     time.Now(),
		ClusterExists: false,
		Health:        types.HealthUnknown,
		Members:       make(map[types.Addr]types.ClusterMember),
		Reachability:  make(map[types.Addr]types.Reachability),
		Roles:         make(map[types.Addr]types.Role),
		SelfIDs:       make(map[types.Addr]string),
	}
	reachable := make(map[types.Addr]bool)
	for _, addr := range up {
		reachable[addr] = true
	}
	for _, addr := range pairTopology().Endpoints() {
		if reachable[addr] {
			snap.Reachability[addr] = types.ReachabilityUp
			snap.Roles[addr] = types.RoleMaster // fresh nodes report master
			snap.SelfIDs[addr] = ids[addr]
		} else {
			snap.Reachability[addr] = types.ReachabilityDown
			snap.Roles[addr] = types.RoleUnset
		}
	}
	return snap
}

func markDown(snap *types.Snapshot, addr types.Addr) {
	snap.Reachability[addr] = types.ReachabilityDown
	snap.Roles[addr] = types.RoleUnset
	delete(snap.SelfIDs, addr)
}

// invert models a completed automatic failover: the replica is master
// and the returned declared master follows it as a replica.
func invert(snap *types.Snapshot, master, replica types.Addr) {
	snap.Roles[replica] = types.RoleMaster
	snap.Roles[master] = types.RoleReplica
	snap.Members[replica] = member(replica, "master", "")
	snap.Members[master] = member(master, "slave", ids[replica])
}

func actionTypes(plan types.Plan) []types.ActionType {
	out := make([]types.ActionType, 0, len(plan.Actions))
	for _, a := range plan.Actions {
		out = append(out, a.Type)
	}
	return out
}

func workTypes(plan types.Plan) []types.ActionType {
	var out []types.ActionType
	for _, a := range plan.Work() {
		out = append(out, a.Type)
	}
	return out
}

// Scenario: six fresh nodes, no cluster anywhere.
func TestPlanBootstrapFreshNodes(t *testing.T) {
	plan := Plan(pairTopology(), bootstrapSnap(m1, m2, m3, r1, r2, r3))

	assert.Equal(t, []types.ActionType{
		types.ActionAddMaster, types.ActionAddMaster, types.ActionAddMaster,
		types.ActionAddReplica, types.ActionAddReplica, types.ActionAddReplica,
	}, actionTypes(plan))

	assert.Equal(t, m1, plan.Actions[0].Target)
	assert.Equal(t, m2, plan.Actions[1].Target)
	assert.Equal(t, m3, plan.Actions[2].Target)
	assert.Equal(t, r1, plan.Actions[3].Target)
	assert.Equal(t, m1, plan.Actions[3].Master)
	for _, a := range plan.Actions {
		assert.Equal(t, types.CategoryBootstrap, a.Category)
	}
	assert.Empty(t, plan.Warnings())
}

func TestPlanBootstrapPartialReachability(t *testing.T) {
	// m2 and the whole third pair are down; r2 is up but orphaned.
	plan := Plan(pairTopology(), bootstrapSnap(m1, r1, r2))

	assert.Equal(t, []types.ActionType{
		types.ActionAddMaster, types.ActionAddReplica,
	}, workTypes(plan))
	assert.Equal(t, m1, plan.Work()[0].Target)
	assert.Equal(t, r1, plan.Work()[1].Target)

	categories := make(map[types.ActionCategory]int)
	for _, a := range plan.Actions {
		if a.Type == types.ActionNoOp {
			categories[a.Category]++
		}
	}
	assert.Equal(t, 2, categories[types.CategoryDownMaster])  // m2, m3
	assert.Equal(t, 1, categories[types.CategoryDownReplica]) // r3
	assert.Equal(t, 1, categories[types.CategoryAmbiguous])   // r2 without its master
}

// Scenario: everything matches the declaration.
func TestPlanHealthyClusterIsAllNoOps(t *testing.T) {
	plan := Plan(pairTopology(), healthySnap())

	assert.False(t, plan.HasWork())
	assert.Len(t, plan.Actions, 3)
	for _, a := range plan.Actions {
		assert.Equal(t, types.ActionNoOp, a.Type)
		assert.Equal(t, types.CategoryHealthy, a.Category)
	}
	assert.Empty(t, plan.Warnings())
}

// Scenario: automatic failover inverted pair one and the master is back.
func TestPlanFailoverRecovery(t *testing.T) {
	snap := healthySnap()
	invert(snap, m1, r1)

	plan := Plan(pairTopology(), snap)

	if len(plan.Actions) < 2 {
		t.Fatalf("expected recovery actions, got %v", plan.Actions)
	}
	restore := plan.Actions[0]
	rebind := plan.Actions[1]

	assert.Equal(t, types.ActionRestoreMaster, restore.Type)
	assert.Equal(t, m1, restore.Target)
	assert.Equal(t, types.CategoryRecovery, restore.Category)

	assert.Equal(t, types.ActionRebindReplica, rebind.Type)
	assert.Equal(t, r1, rebind.Target)
	assert.Equal(t, m1, rebind.Master)

	// Remaining pairs stay healthy no-ops.
	for _, a := range plan.Actions[2:] {
		assert.Equal(t, types.ActionNoOp, a.Type)
		assert.Equal(t, types.CategoryHealthy, a.Category)
	}
}

// Scenario: replica took over and the declared master is still down.
// Restoration must not be attempted against an unreachable master.
func TestPlanDownMasterBlocksRestore(t *testing.T) {
	snap := healthySnap()
	invert(snap, m1, r1)
	markDown(snap, m1)

	plan := Plan(pairTopology(), snap)

	assert.False(t, plan.HasWork())
	warnings := plan.Warnings()
	assert.Len(t, warnings, 1)
	assert.Equal(t, types.CategoryDownMaster, warnings[0].Category)
	assert.Equal(t, m1, warnings[0].Target)
	assert.Contains(t, warnings[0].Reason, "taken over")
}

// Scenario: a replica is down, its master healthy.
func TestPlanDownReplicaNoAction(t *testing.T) {
	snap := healthySnap()
	markDown(snap, r2)
	delete(snap.Members, r2)

	plan := Plan(pairTopology(), snap)

	assert.False(t, plan.HasWork())
	warnings := plan.Warnings()
	assert.Len(t, warnings, 1)
	assert.Equal(t, types.CategoryDownReplica, warnings[0].Category)
	assert.Equal(t, r2, warnings[0].Target)
	assert.Contains(t, warnings[0].Reason, "no action until it returns")
}

func TestPlanAddsMissingMaster(t *testing.T) {
	snap := healthySnap()
	// m2 was wiped and restarted empty: reachable, fresh ID, not a member.
	delete(snap.Members, m2)
	snap.SelfIDs[m2] = "bbb-reborn"

	plan := Plan(pairTopology(), snap)

	work := plan.Work()
	assert.Len(t, work, 1)
	assert.Equal(t, types.ActionAddMaster, work[0].Type)
	assert.Equal(t, m2, work[0].Target)
	assert.Equal(t, types.CategoryAddition, work[0].Category)
}

func TestPlanAddsMissingReplica(t *testing.T) {
	snap := healthySnap()
	delete(snap.Members, r3)

	plan := Plan(pairTopology(), snap)

	work := plan.Work()
	assert.Len(t, work, 1)
	assert.Equal(t, types.ActionAddReplica, work[0].Type)
	assert.Equal(t, r3, work[0].Target)
	assert.Equal(t, m3, work[0].Master)
}

func TestPlanAddsWholeMissingPair(t *testing.T) {
	snap := healthySnap()
	delete(snap.Members, m2)
	delete(snap.Members, r2)

	plan := Plan(pairTopology(), snap)

	assert.Equal(t, []types.ActionType{
		types.ActionAddMaster, types.ActionAddReplica,
	}, workTypes(plan))
}

func TestPlanMissingReplicaWithUnresolvableMaster(t *testing.T) {
	snap := healthySnap()
	delete(snap.Members, r2)
	delete(snap.Members, m2)
	markDown(snap, m2)

	plan := Plan(pairTopology(), snap)

	assert.False(t, plan.HasWork())
	warnings := plan.Warnings()
	assert.Len(t, warnings, 1)
	assert.Equal(t, types.CategoryAmbiguous, warnings[0].Category)
	assert.Contains(t, warnings[0].Reason, "cannot be resolved")
}

func TestPlanDualMasterIsAmbiguous(t *testing.T) {
	snap := healthySnap()
	snap.Roles[r1] = types.RoleMaster
	snap.Members[r1] = member(r1, "master", "")

	plan := Plan(pairTopology(), snap)

	assert.False(t, plan.HasWork())
	warnings := plan.Warnings()
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Reason, "refusing to pick a side")
}

func TestPlanReturnedMasterStillFlaggedFail(t *testing.T) {
	snap := healthySnap()
	invert(snap, m1, r1)
	snap.Members[m1] = member(m1, "slave,fail", ids[r1])

	plan := Plan(pairTopology(), snap)

	assert.False(t, plan.HasWork())
	warnings := plan.Warnings()
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Reason, "flags it failed")
}

func TestPlanForeignMasterBindingIsAmbiguous(t *testing.T) {
	snap := healthySnap()
	rm := snap.Members[r2]
	rm.MasterID = ids[m3]
	snap.Members[r2] = rm

	plan := Plan(pairTopology(), snap)

	assert.False(t, plan.HasWork())
	warnings := plan.Warnings()
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Reason, "different master")
}

func TestPlanPairWithoutMasterIsAmbiguous(t *testing.T) {
	snap := healthySnap()
	snap.Roles[m3] = types.RoleReplica
	snap.Members[m3] = member(m3, "slave", ids[m1])

	plan := Plan(pairTopology(), snap)

	assert.False(t, plan.HasWork())
	warnings := plan.Warnings()
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Reason, "no master")
}

func TestPlanSuspectFlagStaysHealthy(t *testing.T) {
	snap := healthySnap()
	snap.Members[m1] = member(m1, "master,fail?", "")

	plan := Plan(pairTopology(), snap)

	assert.False(t, plan.HasWork())
	assert.Empty(t, plan.Warnings())
}

// Ordering: recoveries first, then master additions, then replica
// additions, regardless of pair positions.
func TestPlanOrdering(t *testing.T) {
	snap := healthySnap()
	delete(snap.Members, m2) // addition in pair two
	invert(snap, m3, r3)     // recovery in pair three

	plan := Plan(pairTopology(), snap)

	assert.Equal(t, []types.ActionType{
		types.ActionRestoreMaster,
		types.ActionRebindReplica,
		types.ActionAddMaster,
	}, workTypes(plan))
	assert.Equal(t, m3, plan.Actions[0].Target)
	assert.Equal(t, r3, plan.Actions[1].Target)
	assert.Equal(t, m2, plan.Actions[2].Target)
}

// Determinism: identical snapshots produce identical plans.
func TestPlanDeterministic(t *testing.T) {
	snap := healthySnap()
	invert(snap, m1, r1)
	delete(snap.Members, m2)

	first := Plan(pairTopology(), snap)
	second := Plan(pairTopology(), snap)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("plans differ for identical inputs:\n%v\n%v", first, second)
	}
}

// The action universe is closed: nothing the planner emits can remove
// a node or destroy data.
func TestPlanActionUniverse(t *testing.T) {
	allowed := map[types.ActionType]bool{
		types.ActionAddMaster:     true,
		types.ActionAddReplica:    true,
		types.ActionRestoreMaster: true,
		types.ActionRebindReplica: true,
		types.ActionNoOp:          true,
	}

	snapshots := []*types.Snapshot{
		bootstrapSnap(m1, m2, m3, r1, r2, r3),
		bootstrapSnap(m1),
		healthySnap(),
	}
	inverted := healthySnap()
	invert(inverted, m1, r1)
	snapshots = append(snapshots, inverted)

	for _, snap := range snapshots {
		for _, a := range Plan(pairTopology(), snap).Actions {
			assert.True(t, allowed[a.Type], "unexpected action type %q", a.Type)
		}
	}
}
