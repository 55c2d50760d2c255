package redis

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/shoal/pkg/types"
)

// FailoverMode selects how aggressively a replica takes over its master
type FailoverMode string

const (
	FailoverGraceful FailoverMode = ""         // coordinated handoff, waits for replication to catch up
	FailoverForce    FailoverMode = "FORCE"    // skips the master handshake
	FailoverTakeover FailoverMode = "TAKEOVER" // skips cluster agreement entirely
)

// Admin is the administrative command surface the engine needs from one node
type Admin interface {
	Addr() types.Addr
	Ping(ctx context.Context) error
	Role(ctx context.Context) (types.Role, error)
	ClusterMyID(ctx context.Context) (string, error)
	ClusterNodes(ctx context.Context) ([]string, error)
	ClusterInfo(ctx context.Context) (map[string]string, error)
	ClusterMeet(ctx context.Context, host string, port int) error
	ClusterReplicate(ctx context.Context, masterID string) error
	ClusterFailover(ctx context.Context, mode FailoverMode) error
}

// Factory builds an Admin for a node address
type Factory func(addr types.Addr) Admin

// Client issues administrative commands to a single node over RESP.
// Every command dials a fresh connection, authenticates, runs, and
// closes. Nodes restart freely around failovers, so a held connection
// would go stale between calls anyway.
type Client struct {
	addr           types.Addr
	auth           string
	connectTimeout time.Duration
	commandTimeout time.Duration
}

// NewClient creates a client for one node
func NewClient(addr types.Addr, auth string) *Client {
	return &Client{
		addr:           addr,
		auth:           auth,
		connectTimeout: 5 * time.Second,
		commandTimeout: 5 * time.Second,
	}
}

// WithTimeouts overrides the default dial and command deadlines
func (c *Client) WithTimeouts(connect, command time.Duration) *Client {
	if connect > 0 {
		c.connectTimeout = connect
	}
	if command > 0 {
		c.commandTimeout = command
	}
	return c
}

// NewFactory returns a Factory bound to the topology's credential and timeouts
func NewFactory(topo *types.Topology) Factory {
	return func(addr types.Addr) Admin {
		return NewClient(addr, topo.Auth).
			WithTimeouts(topo.Probe.ConnectTimeout, topo.Probe.CommandTimeout)
	}
}

// Addr returns the node address this client talks to
func (c *Client) Addr() types.Addr {
	return c.addr
}

// Do runs one command and returns the decoded reply.
// Error replies from the node come back as *CommandError.
func (c *Client) Do(ctx context.Context, args ...string) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	conn, err := net.DialTimeout("tcp", c.addr.String(), c.connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	if err := c.setDeadline(ctx, conn); err != nil {
		return nil, fmt.Errorf("deadline %s: %w", c.addr, err)
	}

	reader := bufio.NewReader(conn)

	if c.auth != "" {
		if err := writeCommand(conn, []string{"AUTH", c.auth}); err != nil {
			return nil, fmt.Errorf("auth %s: %w", c.addr, err)
		}
		if _, err := parseReply(reader); err != nil {
			return nil, fmt.Errorf("auth %s: %w", c.addr, err)
		}
	}

	if err := writeCommand(conn, args); err != nil {
		return nil, fmt.Errorf("%s %s: %w", args[0], c.addr, err)
	}
	reply, err := parseReply(reader)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", args[0], c.addr, err)
	}
	return reply, nil
}

func (c *Client) setDeadline(ctx context.Context, conn net.Conn) error {
	if deadline, ok := ctx.Deadline(); ok {
		return conn.SetDeadline(deadline)
	}
	return conn.SetDeadline(time.Now().Add(c.commandTimeout))
}

// Ping checks liveness
func (c *Client) Ping(ctx context.Context) error {
	reply, err := c.Do(ctx, "PING")
	if err != nil {
		return err
	}
	if s, ok := reply.(string); !ok || !strings.EqualFold(s, "PONG") {
		return fmt.Errorf("ping %s: unexpected reply %v", c.addr, reply)
	}
	return nil
}

// Role asks the node for its own replication role.
// The node's answer is authoritative; peers may lag behind a failover.
func (c *Client) Role(ctx context.Context) (types.Role, error) {
	reply, err := c.Do(ctx, "ROLE")
	if err != nil {
		return types.RoleUnset, err
	}
	items, ok := reply.([]any)
	if !ok || len(items) == 0 {
		return types.RoleUnset, fmt.Errorf("role %s: unexpected reply %v", c.addr, reply)
	}
	name, ok := items[0].(string)
	if !ok {
		return types.RoleUnset, fmt.Errorf("role %s: unexpected reply %v", c.addr, reply)
	}
	switch name {
	case "master":
		return types.RoleMaster, nil
	case "slave", "replica":
		return types.RoleReplica, nil
	default:
		return types.RoleUnset, fmt.Errorf("role %s: unknown role %q", c.addr, name)
	}
}

// ClusterMyID returns the node's own cluster node ID
func (c *Client) ClusterMyID(ctx context.Context) (string, error) {
	reply, err := c.Do(ctx, "CLUSTER", "MYID")
	if err != nil {
		return "", err
	}
	id, ok := reply.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("cluster myid %s: unexpected reply %v", c.addr, reply)
	}
	return strings.TrimSpace(id), nil
}

// ClusterNodes returns the node's view of cluster membership,
// one raw dump line per member
func (c *Client) ClusterNodes(ctx context.Context) ([]string, error) {
	reply, err := c.Do(ctx, "CLUSTER", "NODES")
	if err != nil {
		return nil, err
	}
	dump, ok := reply.(string)
	if !ok {
		return nil, fmt.Errorf("cluster nodes %s: unexpected reply %v", c.addr, reply)
	}
	var lines []string
	for _, line := range strings.Split(dump, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// ClusterInfo returns the key:value cluster state summary
func (c *Client) ClusterInfo(ctx context.Context) (map[string]string, error) {
	reply, err := c.Do(ctx, "CLUSTER", "INFO")
	if err != nil {
		return nil, err
	}
	text, ok := reply.(string)
	if !ok {
		return nil, fmt.Errorf("cluster info %s: unexpected reply %v", c.addr, reply)
	}
	info := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		info[key] = value
	}
	return info, nil
}

// ClusterMeet introduces the node at host:port to the receiver's cluster
func (c *Client) ClusterMeet(ctx context.Context, host string, port int) error {
	_, err := c.Do(ctx, "CLUSTER", "MEET", host, strconv.Itoa(port))
	return err
}

// ClusterReplicate reconfigures the receiving node to replicate masterID
func (c *Client) ClusterReplicate(ctx context.Context, masterID string) error {
	_, err := c.Do(ctx, "CLUSTER", "REPLICATE", masterID)
	return err
}

// ClusterFailover asks the receiving replica to take over from its master
func (c *Client) ClusterFailover(ctx context.Context, mode FailoverMode) error {
	args := []string{"CLUSTER", "FAILOVER"}
	if mode != FailoverGraceful {
		args = append(args, string(mode))
	}
	_, err := c.Do(ctx, args...)
	return err
}
