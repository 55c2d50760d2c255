package snapshot

import (
	"fmt"
	"strings"

	"github.com/cuemby/shoal/pkg/types"
)

// Membership dump column positions. The store emits:
//
//	<id> <ip:port@cport> <flags> <master> <ping-sent> <pong-recv> <config-epoch> <link-state> <slot>...
const (
	colID        = 0
	colAddr      = 1
	colFlags     = 2
	colMasterID  = 3
	colLinkState = 7
	minColumns   = 8
)

// ParseNodesLine parses one membership dump line by column position
func ParseNodesLine(line string) (types.ClusterMember, error) {
	fields := strings.Fields(line)
	if len(fields) < minColumns {
		return types.ClusterMember{}, fmt.Errorf("membership line has %d columns, want at least %d: %q",
			len(fields), minColumns, line)
	}

	member := types.ClusterMember{
		ID:        fields[colID],
		Flags:     strings.Split(fields[colFlags], ","),
		LinkState: fields[colLinkState],
		Raw:       line,
	}
	if fields[colMasterID] != "-" {
		member.MasterID = fields[colMasterID]
	}

	addr, err := parseDumpAddr(fields[colAddr])
	if err != nil {
		return types.ClusterMember{}, fmt.Errorf("membership line address: %w", err)
	}
	member.Addr = addr

	return member, nil
}

// parseDumpAddr strips the @cluster-port suffix before parsing
func parseDumpAddr(s string) (types.Addr, error) {
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	return types.ParseAddr(s)
}

// ValidDump reports whether a dump is usable evidence: non-empty and
// containing the dumping node's own line
func ValidDump(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) <= colFlags {
			continue
		}
		for _, f := range strings.Split(fields[colFlags], ",") {
			if f == types.FlagMyself {
				return true
			}
		}
	}
	return false
}

// DumpShowsCluster reports whether a valid dump is evidence of an
// existing cluster rather than a factory-fresh node. A fresh node
// dumps exactly one line for itself with no slots assigned.
func DumpShowsCluster(lines []string) bool {
	if len(lines) > 1 {
		return true
	}
	for _, line := range lines {
		if len(strings.Fields(line)) > minColumns {
			return true // slot assignments present
		}
	}
	return false
}
