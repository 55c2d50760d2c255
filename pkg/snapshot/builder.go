package snapshot

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/shoal/pkg/log"
	"github.com/cuemby/shoal/pkg/probe"
	"github.com/cuemby/shoal/pkg/types"
)

// Builder aggregates probe results into a Snapshot
type Builder struct {
	logger zerolog.Logger
}

// NewBuilder creates a snapshot builder
func NewBuilder() *Builder {
	return &Builder{logger: log.WithComponent("snapshot")}
}

// Build assembles the observed state for one run. The reference node
// is the first declared endpoint, in pair order with masters before
// replicas, that is up and whose membership dump shows an existing
// cluster. When no endpoint provides that evidence the snapshot marks
// the cluster as not yet formed and the planner takes the bootstrap
// branch.
func (b *Builder) Build(topo *types.Topology, results map[types.Addr]probe.Result) *types.Snapshot {
	snap := &types.Snapshot{
		Timestamp:    time.Now(),
		Health:       types.HealthUnknown,
		Members:      make(map[types.Addr]types.ClusterMember),
		Reachability: make(map[types.Addr]types.Reachability),
		Roles:        make(map[types.Addr]types.Role),
		SelfIDs:      make(map[types.Addr]string),
	}

	endpoints := topo.Endpoints()
	for _, addr := range endpoints {
		res, probed := results[addr]
		if !probed || !res.Up() {
			snap.Reachability[addr] = types.ReachabilityDown
			snap.Roles[addr] = types.RoleUnset
			continue
		}
		snap.Reachability[addr] = types.ReachabilityUp
		snap.Roles[addr] = res.Role
		if res.SelfID != "" {
			snap.SelfIDs[addr] = res.SelfID
		}
	}

	for _, addr := range endpoints {
		res := results[addr]
		if !res.Up() || !ValidDump(res.NodesDump) || !DumpShowsCluster(res.NodesDump) {
			continue
		}

		ref := addr
		snap.ReferenceAddr = &ref
		snap.ClusterExists = true
		b.parseMembers(snap, res.NodesDump)
		snap.Health = healthFromInfo(res.Info)

		b.logger.Debug().
			Str("reference", ref.String()).
			Int("members", len(snap.Members)).
			Str("health", string(snap.Health)).
			Msg("snapshot built from reference dump")
		break
	}

	if !snap.ClusterExists {
		b.logger.Debug().Int("endpoints", len(endpoints)).Msg("no endpoint shows an existing cluster")
	}

	return snap
}

// parseMembers fills the member map from the reference dump. A line
// that fails to parse is skipped with a warning; one corrupt line must
// not discard the rest of the view.
func (b *Builder) parseMembers(snap *types.Snapshot, lines []string) {
	for _, line := range lines {
		member, err := ParseNodesLine(line)
		if err != nil {
			b.logger.Warn().Str("line", line).Err(err).Msg("skipping unparseable membership line")
			continue
		}
		snap.Members[member.Addr] = member
	}
}

func healthFromInfo(info map[string]string) types.Health {
	state, ok := info["cluster_state"]
	if !ok {
		return types.HealthUnknown
	}
	if state == "ok" {
		return types.HealthOK
	}
	return types.HealthDegraded
}
