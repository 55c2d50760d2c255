/*
Package redis implements the minimal RESP client for the store's
administrative command surface.

The engine administers cluster nodes through eight commands: PING,
ROLE, CLUSTER MYID, CLUSTER NODES, CLUSTER INFO, CLUSTER MEET, CLUSTER
REPLICATE, and CLUSTER FAILOVER. This package speaks exactly that
surface and nothing else. There is no data-plane access, no pipelining,
and no connection pool: an administrative round trip is a dial, an
AUTH, one command, one reply.

# Usage

	addr, _ := types.ParseAddr("10.0.0.1:6379")
	client := redis.NewClient(addr, password).
		WithTimeouts(5*time.Second, 5*time.Second)

	role, err := client.Role(ctx)

Callers that need to distinguish "the node answered with an error"
from "the node could not be reached" unwrap with errors.As:

	var cmdErr *redis.CommandError
	if errors.As(err, &cmdErr) {
		// reachable, rejected the command
	}

The Admin interface mirrors *Client so tests can substitute fakes, and
Factory binds a topology's credential and timeouts so downstream
components construct per-node clients without carrying configuration.
*/
package redis
