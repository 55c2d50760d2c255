package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/shoal/pkg/types"
)

// Defaults applied when the topology file omits tuning values.
const (
	DefaultConnectTimeout   = 5 * time.Second
	DefaultCommandTimeout   = 5 * time.Second
	DefaultFailoverAttempts = 10
	DefaultFailoverBackoff  = 500 * time.Millisecond
)

// Duration wraps time.Duration so YAML can carry values like "5s" or "500ms"
type Duration time.Duration

// UnmarshalYAML parses a Go duration string
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// File mirrors the topology YAML document
type File struct {
	Auth     string       `yaml:"auth"`
	Pairs    []PairSpec   `yaml:"pairs"`
	Probe    ProbeSpec    `yaml:"probe"`
	Failover FailoverSpec `yaml:"failover"`
}

// PairSpec declares one master/replica pair by address
type PairSpec struct {
	Master  string `yaml:"master"`
	Replica string `yaml:"replica"`
}

// ProbeSpec tunes discovery connections
type ProbeSpec struct {
	ConnectTimeout Duration `yaml:"connect_timeout"`
	CommandTimeout Duration `yaml:"command_timeout"`
}

// FailoverSpec tunes the promotion poll
type FailoverSpec struct {
	Attempts int      `yaml:"attempts"`
	Backoff  Duration `yaml:"backoff"`
}

// Load reads and validates a topology file.
// All validation happens before any network interaction.
func Load(path string) (*types.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}
	topo, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return topo, nil
}

// Parse builds a validated Topology from raw YAML
func Parse(data []byte) (*types.Topology, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}

	if f.Auth == "" {
		return nil, fmt.Errorf("auth must not be empty")
	}
	if len(f.Pairs) == 0 {
		return nil, fmt.Errorf("at least one pair is required")
	}

	topo := &types.Topology{
		Auth: f.Auth,
		Probe: types.ProbeSettings{
			ConnectTimeout: DefaultConnectTimeout,
			CommandTimeout: DefaultCommandTimeout,
		},
		Failover: types.FailoverSettings{
			Attempts: DefaultFailoverAttempts,
			Backoff:  DefaultFailoverBackoff,
		},
	}
	if f.Probe.ConnectTimeout > 0 {
		topo.Probe.ConnectTimeout = time.Duration(f.Probe.ConnectTimeout)
	}
	if f.Probe.CommandTimeout > 0 {
		topo.Probe.CommandTimeout = time.Duration(f.Probe.CommandTimeout)
	}
	if f.Failover.Attempts > 0 {
		topo.Failover.Attempts = f.Failover.Attempts
	}
	if f.Failover.Backoff > 0 {
		topo.Failover.Backoff = time.Duration(f.Failover.Backoff)
	}

	seen := make(map[types.Addr]int)
	for i, p := range f.Pairs {
		master, err := types.ParseAddr(p.Master)
		if err != nil {
			return nil, fmt.Errorf("pair %d: master: %w", i+1, err)
		}
		replica, err := types.ParseAddr(p.Replica)
		if err != nil {
			return nil, fmt.Errorf("pair %d: replica: %w", i+1, err)
		}
		if prev, dup := seen[master]; dup {
			return nil, fmt.Errorf("pair %d: address %s already used in pair %d", i+1, master, prev)
		}
		seen[master] = i + 1
		if prev, dup := seen[replica]; dup {
			return nil, fmt.Errorf("pair %d: address %s already used in pair %d", i+1, replica, prev)
		}
		seen[replica] = i + 1
		topo.Pairs = append(topo.Pairs, types.DesiredPair{Master: master, Replica: replica})
	}

	return topo, nil
}
