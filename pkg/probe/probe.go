package probe

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/shoal/pkg/log"
	"github.com/cuemby/shoal/pkg/redis"
	"github.com/cuemby/shoal/pkg/types"
)

// DefaultConcurrency bounds parallel probes per pass
const DefaultConcurrency = 8

// Result is everything a single node revealed to one probe
type Result struct {
	Addr         types.Addr
	Reachability types.Reachability
	Role         types.Role
	SelfID       string
	NodesDump    []string
	Info         map[string]string
	Err          string // first anomaly seen, empty for a clean probe
	CheckedAt    time.Time
	Duration     time.Duration
}

// Up reports whether the node answered its liveness check
func (r Result) Up() bool {
	return r.Reachability == types.ReachabilityUp
}

// Prober interrogates declared endpoints for their live state
type Prober struct {
	factory     redis.Factory
	logger      zerolog.Logger
	concurrency int
}

// New creates a Prober backed by the given client factory
func New(factory redis.Factory) *Prober {
	return &Prober{
		factory:     factory,
		logger:      log.WithComponent("probe"),
		concurrency: DefaultConcurrency,
	}
}

// WithConcurrency overrides the parallel probe bound
func (p *Prober) WithConcurrency(n int) *Prober {
	if n > 0 {
		p.concurrency = n
	}
	return p
}

// Probe interrogates one node. An unreachable node never produces a Go
// error; it produces a down Result with the reason recorded. A node
// that answers PING is up, and whatever later queries fail leave their
// fields empty for the planner to classify.
func (p *Prober) Probe(ctx context.Context, addr types.Addr) Result {
	started := time.Now()
	result := Result{
		Addr:         addr,
		Reachability: types.ReachabilityDown,
		Role:         types.RoleUnset,
		CheckedAt:    started,
	}

	admin := p.factory(addr)

	if err := admin.Ping(ctx); err != nil {
		result.Err = err.Error()
		result.Duration = time.Since(started)
		p.logger.Debug().Str("addr", addr.String()).Str("error", result.Err).Msg("node unreachable")
		return result
	}
	result.Reachability = types.ReachabilityUp

	if role, err := admin.Role(ctx); err == nil {
		result.Role = role
	} else {
		result.recordErr(err)
		p.logger.Debug().Str("addr", addr.String()).Err(err).Msg("role query failed")
	}

	if id, err := admin.ClusterMyID(ctx); err == nil {
		result.SelfID = id
	} else {
		result.recordErr(err)
		p.logger.Debug().Str("addr", addr.String()).Err(err).Msg("myid query failed")
	}

	if lines, err := admin.ClusterNodes(ctx); err == nil {
		result.NodesDump = lines
	} else {
		result.recordErr(err)
		p.logger.Debug().Str("addr", addr.String()).Err(err).Msg("membership query failed")
	}

	if info, err := admin.ClusterInfo(ctx); err == nil {
		result.Info = info
	} else {
		result.recordErr(err)
		p.logger.Debug().Str("addr", addr.String()).Err(err).Msg("cluster info query failed")
	}

	result.Duration = time.Since(started)
	return result
}

func (r *Result) recordErr(err error) {
	if r.Err == "" {
		r.Err = err.Error()
	}
}

// ProbeAll interrogates every endpoint with bounded concurrency and
// returns results keyed by address. Results are complete: every
// requested endpoint has an entry.
func (p *Prober) ProbeAll(ctx context.Context, endpoints []types.Addr) map[types.Addr]Result {
	results := make(map[types.Addr]Result, len(endpoints))

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.concurrency)

	for _, addr := range endpoints {
		wg.Add(1)
		go func(addr types.Addr) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := p.Probe(ctx, addr)

			mu.Lock()
			results[addr] = res
			mu.Unlock()
		}(addr)
	}
	wg.Wait()

	return results
}
