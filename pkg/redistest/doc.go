/*
Package redistest provides an in-process Redis-compatible node for
tests, built on redcon.

A Node serves the administrative commands the engine relies on (PING,
AUTH, ROLE, CLUSTER MYID/NODES/INFO/MEET/REPLICATE/FAILOVER) from
scriptable state, and records every mutating call so tests can assert
exactly which admin operations ran:

	node := redistest.Start(t, redistest.Config{Auth: "pw", Role: "slave"})
	node.SetClusterNodes(
		redistest.Line(node.ID(), node.Addr(), "myself,slave", masterID),
	)
	// ... exercise code under test ...
	assert.Equal(t, []string{masterID}, node.ReplicateCalls())

Promotion behavior after CLUSTER FAILOVER is scriptable: immediate by
default, delayed by PromoteAfterPolls, or withheld entirely by
HangFailover to exercise timeout paths.
*/
package redistest
