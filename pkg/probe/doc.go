/*
Package probe discovers the live state of declared cluster endpoints.

One probe interrogates one node over its admin surface: liveness
(PING), self-reported role (ROLE), identity (CLUSTER MYID), membership
view (CLUSTER NODES), and state summary (CLUSTER INFO). Probes never
fail as Go errors; an unreachable or unauthenticatable node yields a
down Result carrying the reason, because unreachability is a
classification the planner consumes, not an exception.

ProbeAll runs probes concurrently with a bounded worker count and
aggregates into a per-address map. Probing is the only concurrent
stage of a reconciliation run; everything downstream consumes the
finished map single-threaded.
*/
package probe
