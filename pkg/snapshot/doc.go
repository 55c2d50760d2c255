/*
Package snapshot builds the observed topology state for one
reconciliation run.

All raw text parsing of the store's admin surface lives here. The rest
of the engine consumes typed snapshots and never touches dump lines,
so a change to the membership grammar is contained to this package.

# Reference Selection

The membership view comes from a single reference node rather than a
merge of every node's view: peers can disagree mid-failover, and a
merged view would manufacture states no node actually reports. The
reference is the first declared endpoint, in pair order with masters
before replicas, that is up and whose dump is evidence of an existing
cluster:

  - the dump is valid: non-empty and carrying the node's own
    "myself" line, and
  - it shows participation: more than one member line, or any
    assigned slot range.

A factory-fresh node dumps exactly one slotless line for itself; that
is not evidence, so a set of fresh nodes yields ClusterExists=false
and the planner bootstraps. If a formed cluster hides behind invalid
dumps the bootstrap actions are harmless: re-introducing a known
member is idempotent on the admin surface.

# Membership Grammar

One member per line, whitespace-separated columns, parsed by position:

	<id> <ip:port@cport> <flags> <master> <ping-sent> <pong-recv> <config-epoch> <link-state> <slot>...

Only id, address, flags, master, and link-state are consumed. The
@cport suffix is stripped. Flags are comma-joined; "myself", "fail",
"fail?", and "handshake" drive classification. A line that fails to
parse is skipped with a warning so one corrupt line cannot discard
the rest of the view.

# Health

cluster_state from the reference's CLUSTER INFO maps to the snapshot
health: "ok" is OK, any other reported value is Degraded, and a
missing summary is Unknown. Roles are not taken from the dump at all;
the probe's direct ROLE answers are authoritative.
*/
package snapshot
