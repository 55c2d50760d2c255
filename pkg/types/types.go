package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Addr identifies a cluster node endpoint
type Addr struct {
	Host string
	Port int
}

// ParseAddr parses "host:port" into an Addr
func ParseAddr(s string) (Addr, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return Addr{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if host == "" {
		return Addr{}, fmt.Errorf("invalid address %q: empty host", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Addr{}, fmt.Errorf("invalid address %q: port is not a number", s)
	}
	if port < 1 || port > 65535 {
		return Addr{}, fmt.Errorf("invalid address %q: port out of range", s)
	}
	return Addr{Host: host, Port: port}, nil
}

// String renders the Addr as "host:port"
func (a Addr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// IsZero reports whether the Addr is unset
func (a Addr) IsZero() bool {
	return a.Host == "" && a.Port == 0
}

// Role is a node's replication role as the node itself reports it
type Role string

const (
	RoleMaster  Role = "master"
	RoleReplica Role = "replica"
	RoleUnset   Role = "" // node unreachable or role not yet queried
)

// Reachability is the admin-port connectivity state of a node
type Reachability string

const (
	ReachabilityUp   Reachability = "up"
	ReachabilityDown Reachability = "down"
)

// Health summarizes the cluster state reported by the reference node
type Health string

const (
	HealthOK       Health = "ok"
	HealthDegraded Health = "degraded"
	HealthUnknown  Health = "unknown"
)

// Membership dump flags as the store emits them.
const (
	FlagMyself    = "myself"
	FlagMaster    = "master"
	FlagSlave     = "slave"
	FlagFail      = "fail"
	FlagSuspect   = "fail?"
	FlagHandshake = "handshake"
	FlagNoAddr    = "noaddr"
)

// ClusterMember is one parsed line of the reference node's membership dump
type ClusterMember struct {
	ID        string
	Addr      Addr
	Flags     []string
	MasterID  string // node ID of the master this member replicates, "" for masters
	LinkState string // "connected" or "disconnected"
	Raw       string // original dump line, kept for diagnostics
}

// HasFlag reports whether the member carries the given dump flag
func (m ClusterMember) HasFlag(flag string) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Failing reports whether the cluster has marked the member terminally failed
func (m ClusterMember) Failing() bool {
	return m.HasFlag(FlagFail)
}

// Suspect reports whether the member is in the possible-failure state
func (m ClusterMember) Suspect() bool {
	return m.HasFlag(FlagSuspect)
}

// IsSelf reports whether the line describes the dumping node itself
func (m ClusterMember) IsSelf() bool {
	return m.HasFlag(FlagMyself)
}

// Joined reports whether the member is a settled participant rather
// than a transient handshake or address-less entry
func (m ClusterMember) Joined() bool {
	return !m.HasFlag(FlagHandshake) && !m.HasFlag(FlagNoAddr)
}

// DesiredPair declares one master/replica pair of the desired topology
type DesiredPair struct {
	Master  Addr
	Replica Addr
}

// ProbeSettings bounds the admin connections made during discovery
type ProbeSettings struct {
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

// FailoverSettings bounds the promotion poll after CLUSTER FAILOVER
type FailoverSettings struct {
	Attempts int
	Backoff  time.Duration
}

// Topology is the declared desired state plus connection tuning.
// It is fixed after loading and never mutated by a run.
type Topology struct {
	Auth     string
	Pairs    []DesiredPair
	Probe    ProbeSettings
	Failover FailoverSettings
}

// Endpoints returns every declared address in pair order,
// master before replica within each pair
func (t *Topology) Endpoints() []Addr {
	out := make([]Addr, 0, len(t.Pairs)*2)
	for _, p := range t.Pairs {
		out = append(out, p.Master, p.Replica)
	}
	return out
}

// PairFor returns the declared pair containing addr, if any
func (t *Topology) PairFor(addr Addr) (DesiredPair, bool) {
	for _, p := range t.Pairs {
		if p.Master == addr || p.Replica == addr {
			return p, true
		}
	}
	return DesiredPair{}, false
}

// Snapshot is the observed cluster state at one instant.
// Built fresh for every run; never persisted as authority.
type Snapshot struct {
	Timestamp     time.Time
	ClusterExists bool
	Health        Health
	ReferenceAddr *Addr // node whose dump populated Members, nil when no cluster found
	Members       map[Addr]ClusterMember
	Reachability  map[Addr]Reachability
	Roles         map[Addr]Role   // from direct ROLE queries, authoritative per node
	SelfIDs       map[Addr]string // from direct CLUSTER MYID queries
}

// Up reports whether the node at addr answered its probe
func (s *Snapshot) Up(addr Addr) bool {
	return s.Reachability[addr] == ReachabilityUp
}

// AnyUp reports whether at least one declared endpoint answered
func (s *Snapshot) AnyUp() bool {
	for _, r := range s.Reachability {
		if r == ReachabilityUp {
			return true
		}
	}
	return false
}

// Member returns the membership entry for addr from the reference dump
func (s *Snapshot) Member(addr Addr) (ClusterMember, bool) {
	m, ok := s.Members[addr]
	return m, ok
}

// NodeID resolves the node ID for addr, preferring the reference dump
// and falling back to the node's own CLUSTER MYID reply
func (s *Snapshot) NodeID(addr Addr) string {
	if m, ok := s.Members[addr]; ok && m.ID != "" {
		return m.ID
	}
	return s.SelfIDs[addr]
}

// ActionType enumerates the corrective operations the planner may emit.
// Every type is additive or role-restoring. There is no removal,
// reset, or data-destroying variant.
type ActionType string

const (
	ActionAddMaster     ActionType = "add-master"
	ActionAddReplica    ActionType = "add-replica"
	ActionRestoreMaster ActionType = "restore-master" // via coordinated failover on the replica
	ActionRebindReplica ActionType = "rebind-replica"
	ActionNoOp          ActionType = "no-op"
)

// ActionCategory classifies why an action was planned
type ActionCategory string

const (
	CategoryBootstrap   ActionCategory = "bootstrap"
	CategoryAddition    ActionCategory = "addition"
	CategoryRecovery    ActionCategory = "recovery"
	CategoryHealthy     ActionCategory = "healthy"
	CategoryDownMaster  ActionCategory = "down-master"
	CategoryDownReplica ActionCategory = "down-replica"
	CategoryAmbiguous   ActionCategory = "ambiguous"
)

// Action is one self-contained corrective step
type Action struct {
	Type     ActionType
	Category ActionCategory
	Target   Addr   // node the action operates on
	Master   Addr   // pair master, set for add-replica and rebind-replica
	Reason   string // operator-facing explanation
}

// IsWork reports whether the action mutates the cluster when applied
func (a Action) IsWork() bool {
	return a.Type != ActionNoOp
}

// Plan is the ordered list of actions for one reconciliation run.
// Recovery actions precede additions; informational no-ops come last.
type Plan struct {
	Actions []Action
}

// HasWork reports whether the plan contains any mutating action
func (p *Plan) HasWork() bool {
	for _, a := range p.Actions {
		if a.IsWork() {
			return true
		}
	}
	return false
}

// Work returns the mutating actions in execution order
func (p *Plan) Work() []Action {
	var out []Action
	for _, a := range p.Actions {
		if a.IsWork() {
			out = append(out, a)
		}
	}
	return out
}

// Warnings returns no-op actions that demand operator attention:
// unreachable nodes and states the planner refuses to touch
func (p *Plan) Warnings() []Action {
	var out []Action
	for _, a := range p.Actions {
		switch a.Category {
		case CategoryDownMaster, CategoryDownReplica, CategoryAmbiguous:
			if a.Type == ActionNoOp {
				out = append(out, a)
			}
		}
	}
	return out
}

// Counts returns the number of actions per category
func (p *Plan) Counts() map[ActionCategory]int {
	out := make(map[ActionCategory]int)
	for _, a := range p.Actions {
		out[a.Category]++
	}
	return out
}

// Outcome is the terminal state of one executed action
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// ActionResult records how one action fared during execution
type ActionResult struct {
	Action   Action
	Outcome  Outcome
	Err      string // failure detail, empty on success
	Attempts int    // admin calls spent, including retries
	Duration time.Duration
}

// ExecutionReport summarizes one executor pass over a plan
type ExecutionReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []ActionResult
	Applied    int
	Failed     int
	Skipped    int
}

// RunMode distinguishes how a reconciliation run was invoked
type RunMode string

const (
	RunModePlan  RunMode = "plan"
	RunModeApply RunMode = "apply"
	RunModeWatch RunMode = "watch"
)

// RunRecord is the journal entry for one completed run
type RunRecord struct {
	RunID         string
	Mode          RunMode
	StartedAt     time.Time
	FinishedAt    time.Time
	ClusterExists bool
	Health        Health
	Plan          Plan
	Report        *ExecutionReport // nil for plan-only runs
	Converged     bool             // verification re-probe found no remaining work
}
