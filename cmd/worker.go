package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start long running background jobs such as provisioning reconciliation.`,
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Retry unfinished user provisioning",
	Long:  `Periodically retry directory writes for users whose identity exists but whose directory record was never written.`,
	Run: func(cmd *cobra.Command, args []string) {
		startReconcileWorker()
	},
}

var (
	reconcileInterval time.Duration
	reconcileBatch    int
	reconcileOnce     bool
)

func startReconcileWorker() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	logger := deps.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting reconcile worker", "interval", reconcileInterval, "batch", reconcileBatch)

	runOnce := func() {
		result, err := deps.Users.Reconcile(ctx, reconcileBatch)
		if err != nil {
			logger.Error("reconcile pass failed", "error", err)
			return
		}
		if result.Failed > 0 {
			logger.Warn("provisioning runs still pending", "pending", result.Pending)
		}
	}

	runOnce()
	if reconcileOnce {
		return
	}

	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("received signal, shutting down reconcile worker")
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

func init() {
	reconcileWorkerCmd.Flags().DurationVar(&reconcileInterval, "interval", time.Minute, "Time between reconcile passes")
	reconcileWorkerCmd.Flags().IntVar(&reconcileBatch, "batch", 50, "Maximum provisioning runs examined per pass")
	reconcileWorkerCmd.Flags().BoolVar(&reconcileOnce, "once", false, "Run a single pass and exit")

	workerCmd.AddCommand(reconcileWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
