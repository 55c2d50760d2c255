package planner

import (
	"fmt"

	"github.com/cuemby/shoal/pkg/types"
)

// Plan computes the ordered action list that converges the observed
// snapshot toward the declared topology. Pure and deterministic: no
// I/O, no clock, identical inputs yield identical plans. Every emitted
// action is additive or role-restoring; nothing here removes a node or
// touches data.
func Plan(topo *types.Topology, snap *types.Snapshot) types.Plan {
	if !snap.ClusterExists {
		return bootstrap(topo, snap)
	}
	return reconcile(topo, snap)
}

// bootstrap plans first formation: found every reachable master, then
// bind every reachable replica whose master can be identified.
func bootstrap(topo *types.Topology, snap *types.Snapshot) types.Plan {
	var masters, replicas, notes []types.Action

	for _, pair := range topo.Pairs {
		mUp := snap.Up(pair.Master)
		rUp := snap.Up(pair.Replica)

		if mUp {
			masters = append(masters, types.Action{
				Type:     types.ActionAddMaster,
				Category: types.CategoryBootstrap,
				Target:   pair.Master,
				Reason:   fmt.Sprintf("no cluster found; founding master %s", pair.Master),
			})
		} else {
			notes = append(notes, noop(types.CategoryDownMaster, pair.Master,
				fmt.Sprintf("master %s is unreachable and cannot join the bootstrap", pair.Master)))
		}

		switch {
		case rUp && mUp:
			replicas = append(replicas, types.Action{
				Type:     types.ActionAddReplica,
				Category: types.CategoryBootstrap,
				Target:   pair.Replica,
				Master:   pair.Master,
				Reason:   fmt.Sprintf("no cluster found; binding %s as replica of %s", pair.Replica, pair.Master),
			})
		case rUp:
			notes = append(notes, noop(types.CategoryAmbiguous, pair.Replica,
				fmt.Sprintf("replica %s is reachable but its master %s is not; cannot bind", pair.Replica, pair.Master)))
		default:
			notes = append(notes, noop(types.CategoryDownReplica, pair.Replica,
				fmt.Sprintf("replica %s is unreachable and cannot join the bootstrap", pair.Replica)))
		}
	}

	actions := append(masters, replicas...)
	actions = append(actions, notes...)
	return types.Plan{Actions: actions}
}

// reconcile diffs each declared pair against the observed cluster.
// Recovery actions come first in the plan, with each restoration
// immediately followed by its replica rebind, then master additions,
// then replica additions, then informational no-ops.
func reconcile(topo *types.Topology, snap *types.Snapshot) types.Plan {
	var recoveries, addMasters, addReplicas, notes []types.Action

	for _, pair := range topo.Pairs {
		m, r := pair.Master, pair.Replica
		mUp, rUp := snap.Up(m), snap.Up(r)
		mRole, rRole := snap.Roles[m], snap.Roles[r]
		mMem, mOK := snap.Member(m)
		rMem, rOK := snap.Member(r)
		mJoined := mOK && mMem.Joined()
		rJoined := rOK && rMem.Joined()

		// A replica holding the master role means an automatic failover
		// happened. Restoration is gated on the declared master being
		// back and demoted, with the cluster no longer flagging it
		// failed.
		if rUp && rRole == types.RoleMaster {
			switch {
			case !mUp:
				notes = append(notes, noop(types.CategoryDownMaster, m,
					fmt.Sprintf("replica %s has taken over; master %s is unreachable, restoration deferred until it returns", r, m)))
			case mRole == types.RoleReplica && mJoined && !mMem.Failing():
				recoveries = append(recoveries,
					types.Action{
						Type:     types.ActionRestoreMaster,
						Category: types.CategoryRecovery,
						Target:   m,
						Reason:   fmt.Sprintf("replica %s holds the master role; restoring %s via coordinated failover", r, m),
					},
					types.Action{
						Type:     types.ActionRebindReplica,
						Category: types.CategoryRecovery,
						Target:   r,
						Master:   m,
						Reason:   fmt.Sprintf("re-pointing %s at its declared master %s after restoration", r, m),
					})
			case mRole == types.RoleMaster:
				notes = append(notes, noop(types.CategoryAmbiguous, m,
					fmt.Sprintf("both %s and %s report the master role; refusing to pick a side", m, r)))
			case mJoined && mMem.Failing():
				notes = append(notes, noop(types.CategoryAmbiguous, m,
					fmt.Sprintf("master %s answers but the cluster still flags it failed; waiting for the flag to clear", m)))
			default:
				notes = append(notes, noop(types.CategoryAmbiguous, m,
					fmt.Sprintf("replica %s has taken over but master %s is in no restorable state", r, m)))
			}
			continue
		}

		// Missing nodes are additions. Both can fire for one pair.
		added := false
		if mUp && !mJoined {
			addMasters = append(addMasters, types.Action{
				Type:     types.ActionAddMaster,
				Category: types.CategoryAddition,
				Target:   m,
				Reason:   fmt.Sprintf("master %s is reachable but not a cluster member", m),
			})
			added = true
		}
		if rUp && !rJoined {
			if snap.NodeID(m) != "" || (mUp && !mJoined) {
				addReplicas = append(addReplicas, types.Action{
					Type:     types.ActionAddReplica,
					Category: types.CategoryAddition,
					Target:   r,
					Master:   m,
					Reason:   fmt.Sprintf("replica %s is reachable but not a cluster member; will replicate %s", r, m),
				})
			} else {
				notes = append(notes, noop(types.CategoryAmbiguous, r,
					fmt.Sprintf("replica %s is not a member and the identity of master %s cannot be resolved", r, m)))
			}
			added = true
		}
		if added {
			continue
		}

		if !mUp {
			notes = append(notes, noop(types.CategoryDownMaster, m,
				fmt.Sprintf("master %s is unreachable", m)))
		}
		if !rUp {
			notes = append(notes, noop(types.CategoryDownReplica, r,
				fmt.Sprintf("replica %s is unreachable; no action until it returns", r)))
		}
		if !mUp || !rUp {
			continue
		}

		// Both nodes up and joined. The pair is healthy when roles
		// match the declaration and the replica follows this master.
		// A transient fail? suspicion does not break a healthy pair.
		masterID := snap.NodeID(m)
		if mRole == types.RoleMaster && rRole == types.RoleReplica &&
			!mMem.Failing() && !rMem.Failing() &&
			masterID != "" && rMem.MasterID == masterID {
			notes = append(notes, noop(types.CategoryHealthy, m,
				fmt.Sprintf("pair %s / %s matches the declared topology", m, r)))
			continue
		}

		notes = append(notes, noop(types.CategoryAmbiguous, m, classify(pair, snap, mMem, rMem)))
	}

	actions := append(recoveries, addMasters...)
	actions = append(actions, addReplicas...)
	actions = append(actions, notes...)
	return types.Plan{Actions: actions}
}

// classify names the non-enumerated state a joined, reachable pair is
// in. These states are reported, never auto-resolved.
func classify(pair types.DesiredPair, snap *types.Snapshot, mMem, rMem types.ClusterMember) string {
	m, r := pair.Master, pair.Replica
	mRole, rRole := snap.Roles[m], snap.Roles[r]
	masterID := snap.NodeID(m)

	switch {
	case mMem.Failing():
		return fmt.Sprintf("master %s answers but the cluster still flags it failed; waiting for the flag to clear", m)
	case rMem.Failing():
		return fmt.Sprintf("replica %s answers but the cluster still flags it failed; waiting for the flag to clear", r)
	case mRole == types.RoleReplica && rRole == types.RoleReplica:
		return fmt.Sprintf("both %s and %s report the replica role; the pair has no master", m, r)
	case mRole == types.RoleUnset || rRole == types.RoleUnset:
		return fmt.Sprintf("role of %s or %s could not be determined", m, r)
	case rRole == types.RoleReplica && masterID != "" && rMem.MasterID != masterID:
		return fmt.Sprintf("replica %s replicates a different master (%s); refusing to rebind automatically", r, rMem.MasterID)
	case masterID == "":
		return fmt.Sprintf("identity of master %s cannot be resolved", m)
	default:
		return fmt.Sprintf("pair %s / %s is in an unclassified state; operator review required", m, r)
	}
}

func noop(category types.ActionCategory, target types.Addr, reason string) types.Action {
	return types.Action{
		Type:     types.ActionNoOp,
		Category: category,
		Target:   target,
		Reason:   reason,
	}
}
