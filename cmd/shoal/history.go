package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/shoal/pkg/journal"
	"github.com/cuemby/shoal/pkg/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show journaled reconciliation runs",
	Long: `List past runs from the journal, newest first. Every apply and watch
iteration is recorded, including declined and failed ones.

Examples:
  # The last 20 runs
  shoal history

  # One run in full detail
  shoal history --id 4f7c2a18-9b3e-4c1d-8a6f-2e5d9c0b1a47

  # Trim the journal to the 100 most recent runs
  shoal history --prune 100`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Most recent runs to show")
	historyCmd.Flags().String("id", "", "Show one run in full detail")
	historyCmd.Flags().Int("prune", 0, "Delete all but the N most recent runs")
	historyCmd.Flags().String("data-dir", defaultDataDir, "Directory holding the run journal")
	historyCmd.Flags().Bool("json", false, "Machine-readable output")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("id")
	keep, _ := cmd.Flags().GetInt("prune")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := journal.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer store.Close()

	if keep > 0 {
		removed, err := store.Prune(keep)
		if err != nil {
			return fmt.Errorf("failed to prune journal: %w", err)
		}
		fmt.Printf("✓ Pruned %d run(s)\n", removed)
		return nil
	}

	if runID != "" {
		rec, err := store.GetRun(runID)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(os.Stdout, report.NewRunView(*rec))
		}
		report.WriteRunDetail(os.Stdout, *rec)
		return nil
	}

	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}

	if asJSON {
		views := make([]report.RunView, 0, len(runs))
		for _, rec := range runs {
			views = append(views, report.NewRunView(*rec))
		}
		return writeJSON(os.Stdout, views)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	for _, rec := range runs {
		report.WriteRun(os.Stdout, *rec)
	}
	return nil
}
