/*
Package types defines the core data structures used throughout Shoal.

This package contains the domain model shared by every other package:
the declared topology, the observed snapshot, and the plan that bridges
the two. All reconciliation logic is expressed as transformations over
these types.

# Core Types

Desired state:
  - Topology: ordered master/replica pairs plus connection tuning
  - DesiredPair: one master address and one replica address
  - Addr: comparable host:port endpoint, usable as a map key

Observed state:
  - Snapshot: one instant of discovered cluster state
  - ClusterMember: a parsed membership dump line from the reference node
  - Role, Reachability, Health: typed string enums

Convergence:
  - Plan: ordered corrective actions for one run
  - Action, ActionType, ActionCategory: what to do and why
  - ActionResult, ExecutionReport: what actually happened
  - RunRecord: the journaled summary of a completed run

# Design Notes

The ActionType universe is deliberately closed: every variant either adds
a node to the cluster or restores a declared role. No variant removes a
node, forgets a member, resets state, or deletes data. Destructive repair
is out of scope by construction, not by convention.

Roles in a Snapshot come from querying each node directly. The reference
node's membership dump supplies IDs, flags, and replication links, but a
node's own answer to ROLE is authoritative for its role. The planner
treats disagreement between the two surfaces as ambiguous rather than
picking a winner.

Enumerations use typed string constants:

	type Role string
	const (
	    RoleMaster  Role = "master"
	    RoleReplica Role = "replica"
	)

All types are JSON-serializable; the journal stores them as marshaled
JSON for human-debuggable history.
*/
package types
