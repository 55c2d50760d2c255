/*
Package planner computes the corrective plan for one reconciliation
run.

The planner is a pure function from (declared topology, observed
snapshot) to an ordered action list. It performs no I/O and holds no
state between runs; feeding it the same snapshot twice yields
byte-identical plans. Every run re-derives the full plan
from scratch, so the engine is level-triggered: it converges from
whatever state it finds, not from a remembered diff.

# Decision Rules

When no cluster exists anywhere, the plan is a bootstrap: found every
reachable declared master, then bind every reachable replica whose
master is also reachable. Unreachable endpoints become warnings.

Against an existing cluster, each declared pair (M, R) is classified
with the first matching rule winning:

 1. R holds the master role, M is back, demoted, and no longer flagged
    failed: restore M via a coordinated failover and rebind R to it.
 2. R holds the master role and M is unreachable: warn and wait. A
    restoration against an absent master would either fail or, worse,
    interrupt the only serving node of the pair.
 3. M is reachable but not a settled cluster member: add it.
 4. R is reachable, not a member, and M's node ID is resolvable from
    the membership view or M's own identity reply: add R as replica
    of M. Rules 3 and 4 can both fire for one pair.
 5. R is unreachable: note it; a down replica requires no action.
 6. Roles match the declaration and R replicates M: the pair is
    healthy.

Everything else is ambiguous and becomes a warning naming the state:
dual masters, a returned master still flagged failed, a replica bound
to a foreign master, a pair with no master role anywhere. Ambiguous
states are never auto-resolved; the operator sees them every run until
the cluster or the operator clears them.

# Ordering

The emitted plan orders recovery actions first, each restoration
immediately followed by its replica rebind, then master additions,
then replica additions, then informational no-ops. Restorations go
first because an inverted pair is actively serving writes from the
wrong node; additions merely extend capacity.

# Safety

The action vocabulary has no destructive member. The planner cannot
emit a node removal, a FORGET, a RESET, or a slot reassignment, so no
snapshot, however confused, can make it plan data loss.
*/
package planner
