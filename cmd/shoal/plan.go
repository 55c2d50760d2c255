package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/shoal/pkg/config"
	"github.com/cuemby/shoal/pkg/reconciler"
	"github.com/cuemby/shoal/pkg/report"
	"github.com/cuemby/shoal/pkg/types"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what apply would do, without touching the cluster",
	Long: `Probe every declared node, compare the live topology against the
topology file, and print the actions apply would take. Nothing is
mutated.

Exits 3 when the plan contains work, so scripts can detect drift.

Examples:
  # Human-readable plan
  shoal plan -f topology.yaml

  # Machine-readable, for CI drift checks
  shoal plan -f topology.yaml --json`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringP("file", "f", "", "Topology file (required)")
	planCmd.Flags().Bool("json", false, "Machine-readable output")
	_ = planCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	asJSON, _ := cmd.Flags().GetBool("json")

	topo, err := config.Load(file)
	if err != nil {
		return err
	}

	res, err := reconciler.New(topo).Run(cmd.Context(), reconciler.RunOptions{
		Mode: types.RunModePlan,
	})
	if err != nil {
		return err
	}

	if asJSON {
		out := struct {
			Snapshot report.SnapshotView `json:"snapshot"`
			Plan     report.PlanView     `json:"plan"`
		}{report.NewSnapshotView(topo, res.Snapshot), report.NewPlanView(res.Record.Plan)}
		if err := writeJSON(os.Stdout, out); err != nil {
			return err
		}
	} else {
		report.WriteSnapshot(os.Stdout, topo, res.Snapshot)
		report.WritePlan(os.Stdout, res.Record.Plan)
	}

	if res.Record.Plan.HasWork() {
		return errWorkRemaining
	}
	return nil
}
