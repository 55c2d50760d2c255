package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/shoal/pkg/config"
	"github.com/cuemby/shoal/pkg/journal"
	"github.com/cuemby/shoal/pkg/metrics"
	"github.com/cuemby/shoal/pkg/reconciler"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reconcile continuously until interrupted",
	Long: `Run the reconciliation loop on a fixed interval. Every iteration is
auto-approved, journaled, and exported through the Prometheus endpoint.
This is the mode meant to run unattended next to the cluster.

The metrics listener serves /metrics, /healthz (503 until the last run
converged), and /livez.

Examples:
  shoal watch -f topology.yaml
  shoal watch -f topology.yaml --interval 10s --metrics-addr :9640`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringP("file", "f", "", "Topology file (required)")
	watchCmd.Flags().Duration("interval", 30*time.Second, "Time between reconciliation runs")
	watchCmd.Flags().String("metrics-addr", ":9640", "Listen address for metrics and health")
	watchCmd.Flags().String("data-dir", defaultDataDir, "Directory for the run journal")
	_ = watchCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	interval, _ := cmd.Flags().GetDuration("interval")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
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

	fmt.Println("Starting reconciliation loop...")
	fmt.Printf("  Topology: %s (%d pairs)\n", file, len(topo.Pairs))
	fmt.Printf("  Interval: %s\n", interval)
	fmt.Printf("  Journal: %s\n", dataDir)
	fmt.Printf("  Metrics: %s\n", metricsAddr)
	fmt.Println()

	metrics.SetVersion(Version)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/livez", metrics.LivenessHandler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- reconciler.New(topo).WithJournal(store).Watch(ctx, interval)
	}()

	fmt.Println("Reconciler is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}

	cancel()
	<-watchDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	fmt.Println("✓ Shutdown complete")
	return nil
}
