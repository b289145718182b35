package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	sync_feature "pos-sync/internal/features/sync"

	"github.com/spf13/cobra"
)

var drainBatch int

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Replay pending queue entries once",
	Long: `Run one drain: requeue failed entries whose retry time has come, then push
pending entries to the remote API in enqueue order.

Fails when another process holds the drain lock.`,
	RunE: withEnv(10*time.Minute, func(ctx context.Context, e *env) error {
		result, err := e.syncService().Drain(ctx, drainBatch)
		if errors.Is(err, sync_feature.ErrDrainLocked) {
			return fmt.Errorf("another drain is running on %s", e.cfg.LocalDBPath)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Drain finished in %v\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
		fmt.Printf("   Requeued:  %d\n", result.Requeued)
		fmt.Printf("   Attempted: %d\n", result.Attempted)
		fmt.Printf("   Synced:    %d\n", result.Synced)
		fmt.Printf("   Failed:    %d\n", result.Failed)
		fmt.Printf("   Skipped:   %d\n", result.Skipped)
		if result.Error != "" {
			return fmt.Errorf("drain aborted: %s", result.Error)
		}
		return nil
	}),
}

func init() {
	drainCmd.Flags().IntVar(&drainBatch, "batch", 0, "entries per drain (default DRAIN_BATCH_SIZE)")
	rootCmd.AddCommand(drainCmd)
}
