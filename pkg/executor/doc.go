/*
Package executor applies a convergence plan to the live cluster, one
action at a time, and reports what happened to every action.

# Execution model

Actions run sequentially in plan order. Recovery comes first so a
demoted master is restored before anything else touches its pair, then
new masters, then new replicas, which need their masters to be members
already. A failed action is recorded and the batch moves on; one sick
node never blocks convergence of the rest of the topology.

Every admin write is idempotent from the executor's point of view. An
error reply whose text says the state already holds ("already known",
"already a replica", ...) counts as success, so re-running a plan that
half-applied is safe and is in fact the normal recovery path.

# The reference node

Members are introduced with CLUSTER MEET issued to a reference node
naming the joining node. When a cluster exists the reference is the
node whose dump produced the snapshot. During bootstrap the first
reachable declared master serves as the seed; introducing the seed to
itself is a no-op recorded as applied, everyone else is met through
it.

# Recovery pairing

A restoration is two actions: CLUSTER FAILOVER on the demoted declared
master, then CLUSTER REPLICATE on its declared replica. Promotion is
confirmed by polling the target's own ROLE with a bounded attempt
budget; the poll ends in exactly one of two states, promoted or timed
out. When the restore times out or fails its paired rebind is skipped,
not attempted: rebinding a replica to a node that never retook
mastership would detach it from the data it currently guards.

Retry tuning (attempt count and backoff) comes from the topology's
failover settings and also bounds the replicate retry that waits for
membership gossip to propagate.
*/
package executor
