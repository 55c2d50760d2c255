package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/shoal/pkg/redis"
	"github.com/cuemby/shoal/pkg/redistest"
	"github.com/cuemby/shoal/pkg/types"
)

func testFactory(auth string) redis.Factory {
	return func(addr types.Addr) redis.Admin {
		return redis.NewClient(addr, auth).
			WithTimeouts(500*time.Millisecond, 500*time.Millisecond)
	}
}

func mustAddr(t *testing.T, s string) types.Addr {
	t.Helper()
	addr, err := types.ParseAddr(s)
	if err != nil {
		t.Fatalf("bad address %q: %v", s, err)
	}
	return addr
}

func deadAddr(t *testing.T) types.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := mustAddr(t, ln.Addr().String())
	ln.Close()
	return addr
}

func TestProbeHealthyMaster(t *testing.T) {
	node := redistest.Start(t, redistest.Config{Auth: "pw", Role: "master", ID: "aaa"})
	node.SetClusterNodes(
		redistest.Line("aaa", node.Addr(), "myself,master", "", "0-16383"),
	)
	addr := mustAddr(t, node.Addr())

	result := New(testFactory("pw")).Probe(context.Background(), addr)

	assert.True(t, result.Up())
	assert.Equal(t, types.RoleMaster, result.Role)
	assert.Equal(t, "aaa", result.SelfID)
	assert.Len(t, result.NodesDump, 1)
	assert.Equal(t, "ok", result.Info["cluster_state"])
	assert.Empty(t, result.Err)
}

func TestProbeReplicaRole(t *testing.T) {
	node := redistest.Start(t, redistest.Config{Auth: "pw", Role: "slave", MasterID: "aaa"})
	addr := mustAddr(t, node.Addr())

	result := New(testFactory("pw")).Probe(context.Background(), addr)

	assert.True(t, result.Up())
	assert.Equal(t, types.RoleReplica, result.Role)
}

func TestProbeUnreachableNode(t *testing.T) {
	addr := deadAddr(t)

	result := New(testFactory("pw")).Probe(context.Background(), addr)

	assert.False(t, result.Up())
	assert.Equal(t, types.RoleUnset, result.Role)
	assert.NotEmpty(t, result.Err)
	assert.Nil(t, result.NodesDump)
}

func TestProbeAuthFailureCountsAsDown(t *testing.T) {
	node := redistest.Start(t, redistest.Config{Auth: "pw"})
	addr := mustAddr(t, node.Addr())

	result := New(testFactory("wrong")).Probe(context.Background(), addr)

	assert.False(t, result.Up())
	assert.NotEmpty(t, result.Err)
}

func TestProbeAllCoversEveryEndpoint(t *testing.T) {
	up := redistest.Start(t, redistest.Config{Auth: "pw", Role: "master"})
	down := deadAddr(t)
	upAddr := mustAddr(t, up.Addr())

	endpoints := []types.Addr{upAddr, down}
	results := New(testFactory("pw")).ProbeAll(context.Background(), endpoints)

	assert.Len(t, results, 2)
	assert.True(t, results[upAddr].Up())
	assert.False(t, results[down].Up())
}

func TestProbeAllBoundedConcurrency(t *testing.T) {
	var nodes []*redistest.Node
	var endpoints []types.Addr
	for i := 0; i < 6; i++ {
		n := redistest.Start(t, redistest.Config{Auth: "pw", Role: "master"})
		nodes = append(nodes, n)
		endpoints = append(endpoints, mustAddr(t, n.Addr()))
	}

	prober := New(testFactory("pw")).WithConcurrency(2)
	results := prober.ProbeAll(context.Background(), endpoints)

	assert.Len(t, results, len(nodes))
	for _, addr := range endpoints {
		assert.True(t, results[addr].Up())
	}
}
