package redistest

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/redcon"
)

// Config seeds a fake node's initial state
type Config struct {
	Auth     string // required password, empty disables AUTH checks
	ID       string // cluster node ID, defaulted when empty
	Role     string // "master" or "slave", defaults to "master"
	MasterID string // for slaves, the replicated node's ID
	State    string // cluster_state value, defaults to "ok"
}

// Node is an in-process Redis-compatible node serving just enough of
// the administrative command surface to exercise discovery and
// convergence. All state is scriptable from tests.
type Node struct {
	ln  net.Listener
	srv *redcon.Server

	mu           sync.Mutex
	auth         string
	id           string
	role         string
	masterID     string
	state        string
	nodesDump    []string
	meetErr      string
	replicateErr string
	failoverErr  string
	hangFailover bool
	pendingPolls int

	meets      []string
	replicates []string
	failovers  []string
}

var nextID int
var idMu sync.Mutex

func generateID() string {
	idMu.Lock()
	defer idMu.Unlock()
	nextID++
	return fmt.Sprintf("%040d", nextID)
}

// Start launches a node on a random loopback port and registers
// cleanup with t
func Start(t *testing.T, cfg Config) *Node {
	t.Helper()

	n := &Node{
		auth:     cfg.Auth,
		id:       cfg.ID,
		role:     cfg.Role,
		masterID: cfg.MasterID,
		state:    cfg.State,
	}
	if n.id == "" {
		n.id = generateID()
	}
	if n.role == "" {
		n.role = "master"
	}
	if n.state == "" {
		n.state = "ok"
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	n.ln = ln
	n.srv = redcon.NewServer(ln.Addr().String(), n.handle, nil, nil)

	go func() {
		// Serve returns on Close; errors after shutdown are expected
		_ = n.srv.Serve(ln)
	}()
	t.Cleanup(n.Stop)

	return n
}

// Stop shuts the node down
func (n *Node) Stop() {
	if n.srv != nil {
		_ = n.srv.Close()
	}
	if n.ln != nil {
		// srv.Close is a no-op until Serve has registered the listener;
		// closing ln directly shuts the node down in every interleaving
		_ = n.ln.Close()
	}
}

// Addr returns the node's host:port
func (n *Node) Addr() string {
	return n.ln.Addr().String()
}

// ID returns the node's cluster node ID
func (n *Node) ID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.id
}

// Role returns the node's current role
func (n *Node) Role() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role
}

// MasterID returns the ID the node currently replicates
func (n *Node) MasterID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.masterID
}

// SetRole rewrites the node's role
func (n *Node) SetRole(role string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.role = role
}

// SetMasterID rewrites the replicated master ID
func (n *Node) SetMasterID(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.masterID = id
}

// SetClusterNodes scripts the CLUSTER NODES dump, one line per member
func (n *Node) SetClusterNodes(lines ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodesDump = append([]string(nil), lines...)
}

// SetClusterState scripts the cluster_state value served by CLUSTER INFO
func (n *Node) SetClusterState(state string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = state
}

// FailMeet makes CLUSTER MEET answer with an error reply
func (n *Node) FailMeet(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.meetErr = msg
}

// FailReplicate makes CLUSTER REPLICATE answer with an error reply
func (n *Node) FailReplicate(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replicateErr = msg
}

// FailFailover makes CLUSTER FAILOVER answer with an error reply
func (n *Node) FailFailover(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failoverErr = msg
}

// HangFailover accepts CLUSTER FAILOVER but never promotes,
// simulating a promotion that times out
func (n *Node) HangFailover() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hangFailover = true
}

// PromoteAfterPolls delays promotion until the k-th ROLE query
// following CLUSTER FAILOVER
func (n *Node) PromoteAfterPolls(k int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pendingPolls = k
	n.hangFailover = true // promotion happens via the poll counter
}

// MeetCalls returns recorded CLUSTER MEET arguments as "host:port"
func (n *Node) MeetCalls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.meets...)
}

// ReplicateCalls returns recorded CLUSTER REPLICATE master IDs
func (n *Node) ReplicateCalls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.replicates...)
}

// FailoverCalls returns recorded CLUSTER FAILOVER modes, "" for graceful
func (n *Node) FailoverCalls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.failovers...)
}

func (n *Node) handle(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) == 0 {
		conn.WriteError("ERR empty command")
		return
	}
	name := strings.ToUpper(string(cmd.Args[0]))

	if name == "AUTH" {
		n.handleAuth(conn, cmd)
		return
	}

	n.mu.Lock()
	needAuth := n.auth != ""
	n.mu.Unlock()
	if needAuth && conn.Context() == nil {
		conn.WriteError("NOAUTH Authentication required.")
		return
	}

	switch name {
	case "PING":
		conn.WriteString("PONG")
	case "ROLE":
		n.handleRole(conn)
	case "QUIT":
		conn.WriteString("OK")
		conn.Close()
	case "CLUSTER":
		n.handleCluster(conn, cmd)
	default:
		conn.WriteError("ERR unknown command '" + strings.ToLower(name) + "'")
	}
}

func (n *Node) handleAuth(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) != 2 {
		conn.WriteError("ERR wrong number of arguments for 'auth' command")
		return
	}
	n.mu.Lock()
	want := n.auth
	n.mu.Unlock()
	if want == "" {
		conn.WriteError("ERR Client sent AUTH, but no password is set")
		return
	}
	if string(cmd.Args[1]) != want {
		conn.WriteError("WRONGPASS invalid username-password pair or user is disabled.")
		return
	}
	conn.SetContext(true)
	conn.WriteString("OK")
}

func (n *Node) handleRole(conn redcon.Conn) {
	n.mu.Lock()
	if n.pendingPolls > 0 {
		n.pendingPolls--
		if n.pendingPolls == 0 {
			n.role = "master"
			n.masterID = ""
		}
	}
	role := n.role
	n.mu.Unlock()

	if role == "master" {
		conn.WriteArray(3)
		conn.WriteBulkString("master")
		conn.WriteInt64(0)
		conn.WriteArray(0)
		return
	}
	conn.WriteArray(5)
	conn.WriteBulkString("slave")
	conn.WriteBulkString("127.0.0.1")
	conn.WriteInt64(0)
	conn.WriteBulkString("connected")
	conn.WriteInt64(0)
}

func (n *Node) handleCluster(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) < 2 {
		conn.WriteError("ERR wrong number of arguments for 'cluster' command")
		return
	}
	sub := strings.ToUpper(string(cmd.Args[1]))

	switch sub {
	case "MYID":
		n.mu.Lock()
		id := n.id
		n.mu.Unlock()
		conn.WriteBulkString(id)

	case "NODES":
		n.mu.Lock()
		dump := strings.Join(n.nodesDump, "\n")
		n.mu.Unlock()
		if dump != "" {
			dump += "\n"
		}
		conn.WriteBulkString(dump)

	case "INFO":
		n.mu.Lock()
		state := n.state
		known := len(n.nodesDump)
		n.mu.Unlock()
		if known == 0 {
			known = 1
		}
		info := fmt.Sprintf("cluster_enabled:1\r\ncluster_state:%s\r\ncluster_known_nodes:%d\r\n", state, known)
		conn.WriteBulkString(info)

	case "MEET":
		if len(cmd.Args) != 4 {
			conn.WriteError("ERR wrong number of arguments for 'cluster|meet' command")
			return
		}
		n.mu.Lock()
		failMsg := n.meetErr
		if failMsg == "" {
			n.meets = append(n.meets, net.JoinHostPort(string(cmd.Args[2]), string(cmd.Args[3])))
		}
		n.mu.Unlock()
		if failMsg != "" {
			conn.WriteError(failMsg)
			return
		}
		conn.WriteString("OK")

	case "REPLICATE":
		if len(cmd.Args) != 3 {
			conn.WriteError("ERR wrong number of arguments for 'cluster|replicate' command")
			return
		}
		n.mu.Lock()
		failMsg := n.replicateErr
		if failMsg == "" {
			n.replicates = append(n.replicates, string(cmd.Args[2]))
			n.role = "slave"
			n.masterID = string(cmd.Args[2])
		}
		n.mu.Unlock()
		if failMsg != "" {
			conn.WriteError(failMsg)
			return
		}
		conn.WriteString("OK")

	case "FAILOVER":
		mode := ""
		if len(cmd.Args) > 2 {
			mode = strings.ToUpper(string(cmd.Args[2]))
		}
		n.mu.Lock()
		failMsg := n.failoverErr
		if failMsg == "" {
			n.failovers = append(n.failovers, mode)
			if !n.hangFailover {
				n.role = "master"
				n.masterID = ""
			}
		}
		n.mu.Unlock()
		if failMsg != "" {
			conn.WriteError(failMsg)
			return
		}
		conn.WriteString("OK")

	default:
		conn.WriteError("ERR Unknown CLUSTER subcommand or wrong number of arguments for '" + strings.ToLower(sub) + "'")
	}
}

// Line builds a CLUSTER NODES dump line in the store's wire format.
// flags is the comma-joined flag list, masterID may be empty, slots is
// optional slot ranges appended verbatim.
func Line(id, addr, flags, masterID string, slots ...string) string {
	if masterID == "" {
		masterID = "-"
	}
	host, port, _ := net.SplitHostPort(addr)
	portN, _ := strconv.Atoi(port)
	line := fmt.Sprintf("%s %s:%d@%d %s %s 0 0 1 connected", id, host, portN, portN+10000, flags, masterID)
	if len(slots) > 0 {
		line += " " + strings.Join(slots, " ")
	}
	return line
}
