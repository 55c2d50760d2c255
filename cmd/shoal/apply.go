package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/shoal/pkg/config"
	"github.com/cuemby/shoal/pkg/gate"
	"github.com/cuemby/shoal/pkg/journal"
	"github.com/cuemby/shoal/pkg/reconciler"
	"github.com/cuemby/shoal/pkg/report"
	"github.com/cuemby/shoal/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Reconcile the cluster toward the declared topology",
	Long: `Probe every declared node, plan the difference, show the plan, and
after confirmation execute it. A second probe verifies the result;
the run is journaled either way.

Examples:
  # Interactive apply
  shoal apply -f topology.yaml

  # Unattended apply, e.g. from a deploy pipeline
  shoal apply -f topology.yaml --yes

  # JSON run record on stdout, confirmation prompt on stderr
  shoal apply -f topology.yaml --json`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "Topology file (required)")
	applyCmd.Flags().Bool("yes", false, "Apply without asking for confirmation")
	applyCmd.Flags().Bool("json", false, "Machine-readable run record on stdout")
	applyCmd.Flags().String("data-dir", defaultDataDir, "Directory for the run journal")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	yes, _ := cmd.Flags().GetBool("yes")
	asJSON, _ := cmd.Flags().GetBool("json")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	topo, err := config.Load(file)
	if err != nil {
		return err
	}

	store, err := journal.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer store.Close()

	// With --json the run record owns stdout; the gate and the
	// progress lines move to stderr
	out := io.Writer(os.Stdout)
	if asJSON {
		out = os.Stderr
	}

	var approver gate.Gate = &gate.TerminalGate{Topo: topo, In: os.Stdin, Out: out}
	if yes {
		approver = gate.AutoApprove{}
	}

	res, err := reconciler.New(topo).WithJournal(store).Run(cmd.Context(), reconciler.RunOptions{
		Mode: types.RunModeApply,
		Gate: approver,
	})
	if errors.Is(err, reconciler.ErrDeclined) {
		fmt.Fprintln(out, "Apply cancelled. No changes made.")
		return err
	}
	if err != nil {
		return err
	}

	record := res.Record

	if yes {
		// AutoApprove skipped the rendering the gate would have done
		report.WriteSnapshot(out, topo, res.Snapshot)
		report.WritePlan(out, record.Plan)
	}
	if record.Report != nil {
		report.WriteExecution(out, record.Report)
		if record.Converged {
			fmt.Fprintln(out, "✓ Converged: the cluster matches the declared topology")
		} else {
			fmt.Fprintln(out, "✗ Not converged: inspect the results above and run apply again")
		}
	}

	if asJSON {
		view := struct {
			Snapshot report.SnapshotView `json:"snapshot"`
			Run      report.RunView      `json:"run"`
		}{report.NewSnapshotView(topo, res.Snapshot), report.NewRunView(record)}
		if err := writeJSON(os.Stdout, view); err != nil {
			return err
		}
	}

	if record.Report != nil && record.Report.Failed > 0 {
		return errWorkRemaining
	}
	if !record.Converged {
		return errWorkRemaining
	}
	return nil
}
