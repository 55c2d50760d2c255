package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/shoal/pkg/config"
	"github.com/cuemby/shoal/pkg/reconciler"
	"github.com/cuemby/shoal/pkg/report"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the discovered cluster topology",
	Long: `Probe every declared node and print what was found: reachability,
roles, cluster membership, and replication bindings. No planning, no
mutation. Useful as a first look during an incident.

Examples:
  shoal status -f topology.yaml
  shoal status -f topology.yaml --json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringP("file", "f", "", "Topology file (required)")
	statusCmd.Flags().Bool("json", false, "Machine-readable output")
	_ = statusCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	asJSON, _ := cmd.Flags().GetBool("json")

	topo, err := config.Load(file)
	if err != nil {
		return err
	}

	snap := reconciler.New(topo).Observe(cmd.Context())

	if asJSON {
		return writeJSON(os.Stdout, report.NewSnapshotView(topo, snap))
	}
	report.WriteSnapshot(os.Stdout, topo, snap)
	return nil
}
