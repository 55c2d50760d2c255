// Package framework holds the harness for end-to-end tests that drive
// the shoal binary against in-process fake nodes.
package framework

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/shoal/pkg/redistest"
)

// Password is the auth value shared by every fixture node and
// topology file
const Password = "e2e-password"

// BinaryPath resolves the shoal binary under test
func BinaryPath() string {
	if p := os.Getenv("SHOAL_BINARY"); p != "" {
		return p
	}
	return "../../bin/shoal"
}

// RequireBinary skips t when the shoal binary has not been built
func RequireBinary(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs(BinaryPath())
	if err != nil {
		t.Fatalf("Failed to resolve binary path: %v", err)
	}
	if _, err := os.Stat(abs); err != nil {
		t.Skipf("shoal binary not found at %s; build it or set SHOAL_BINARY", abs)
	}
	return abs
}

// Pair is one declared master/replica pair of fake nodes
type Pair struct {
	Master  *redistest.Node
	Replica *redistest.Node
}

// Fixture is a set of fake pairs plus the files the CLI needs: a
// topology.yaml describing them and an empty data directory for the
// journal.
type Fixture struct {
	Binary       string
	Pairs        []Pair
	TopologyFile string
	DataDir      string
}

// NewFixture starts numPairs fake pairs and writes a topology file
// declaring them. Everything is cleaned up with t.
func NewFixture(t *testing.T, numPairs int) *Fixture {
	t.Helper()

	f := &Fixture{Binary: RequireBinary(t)}
	for i := 0; i < numPairs; i++ {
		f.Pairs = append(f.Pairs, Pair{
			Master:  redistest.Start(t, redistest.Config{Auth: Password}),
			Replica: redistest.Start(t, redistest.Config{Auth: Password}),
		})
	}

	dir := t.TempDir()
	f.TopologyFile = filepath.Join(dir, "topology.yaml")
	f.DataDir = filepath.Join(dir, "journal")
	if err := os.MkdirAll(f.DataDir, 0755); err != nil {
		t.Fatalf("Failed to create data dir: %v", err)
	}
	f.WriteTopology(t, Password)

	return f
}

// WriteTopology rewrites the fixture's topology file with the given
// auth value, keeping timeouts tight for test runs
func (f *Fixture) WriteTopology(t *testing.T, auth string) {
	t.Helper()

	doc := "auth: " + auth + "\npairs:\n"
	for _, pair := range f.Pairs {
		doc += fmt.Sprintf("  - master: %s\n    replica: %s\n", pair.Master.Addr(), pair.Replica.Addr())
	}
	doc += "probe:\n  connect_timeout: 500ms\n  command_timeout: 500ms\n"
	doc += "failover:\n  attempts: 5\n  backoff: 10ms\n"

	if err := os.WriteFile(f.TopologyFile, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write topology file: %v", err)
	}
}

// FormCluster scripts every node's membership dump to the declared
// layout and sets the declared roles, so the fixture probes as a
// healthy formed cluster.
func (f *Fixture) FormCluster() {
	for _, pair := range f.Pairs {
		pair.Master.SetRole("master")
		pair.Master.SetMasterID("")
		pair.Replica.SetRole("slave")
		pair.Replica.SetMasterID(pair.Master.ID())
	}
	for _, pair := range f.Pairs {
		pair.Master.SetClusterNodes(f.dumpFor(pair.Master.ID())...)
		pair.Replica.SetClusterNodes(f.dumpFor(pair.Replica.ID())...)
	}
}

// InvertPair swaps the observed roles of one pair, simulating the
// aftermath of an unplanned failover. The membership dumps keep the
// declared bindings.
func (f *Fixture) InvertPair(i int) {
	pair := f.Pairs[i]
	pair.Master.SetRole("slave")
	pair.Master.SetMasterID(pair.Replica.ID())
	pair.Replica.SetRole("master")
	pair.Replica.SetMasterID("")
}

// dumpFor renders the declared membership as seen from selfID, with
// the slot space split evenly across the masters
func (f *Fixture) dumpFor(selfID string) []string {
	var lines []string
	n := len(f.Pairs)
	for i, pair := range f.Pairs {
		masterFlags := "master"
		if pair.Master.ID() == selfID {
			masterFlags = "myself,master"
		}
		replicaFlags := "slave"
		if pair.Replica.ID() == selfID {
			replicaFlags = "myself,slave"
		}
		slots := fmt.Sprintf("%d-%d", i*16384/n, (i+1)*16384/n-1)
		lines = append(lines,
			redistest.Line(pair.Master.ID(), pair.Master.Addr(), masterFlags, "", slots),
			redistest.Line(pair.Replica.ID(), pair.Replica.Addr(), replicaFlags, pair.Master.ID()),
		)
	}
	return lines
}
