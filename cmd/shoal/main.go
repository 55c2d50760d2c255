package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/shoal/pkg/log"
	"github.com/cuemby/shoal/pkg/reconciler"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// errWorkRemaining marks a run that finished without converging.
// main turns it into exit code 3 without printing anything; the
// command output already told the story.
var errWorkRemaining = errors.New("work remaining")

const defaultDataDir = "./shoal-data"

func main() {
	if err := rootCmd.Execute(); err != nil {
		switch {
		case errors.Is(err, reconciler.ErrDeclined):
			os.Exit(2)
		case errors.Is(err, errWorkRemaining):
			os.Exit(3)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shoal",
	Short: "Shoal - Declarative topology reconciler for Redis Cluster",
	Long: `Shoal keeps a Redis Cluster shaped the way a topology file says it
should be: N master/replica pairs on fixed addresses. Every run probes
the live nodes, plans the difference against the declared layout, and
applies only additive or role-restoring commands. Nothing is ever
removed, reset, or rebalanced.

Exit codes: 0 converged or nothing to do, 1 fatal error, 2 plan
declined at the prompt, 3 actions failed or work remains.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Shoal version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON instead of console lines")

	// Logs go to stderr so stdout stays pipeable
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonLogs})
	}
}

// writeJSON renders v indented, for the --json flags
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
