package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/internal/features/queue"

	"github.com/spf13/cobra"
)

var (
	requeueID int64
	listLimit int
)

var queueStatusCmd = &cobra.Command{
	Use:   "queue-status",
	Short: "Show queue counts and failed entries",
	Long: `Print pending/synced/failed counts and every failed entry with its
last error. --requeue moves one failed entry back to pending.`,
	RunE: withEnv(time.Minute, func(ctx context.Context, e *env) error {
		if requeueID > 0 {
			if err := e.queue.Requeue(ctx, requeueID); err != nil {
				return err
			}
			fmt.Printf("Entry %d requeued\n", requeueID)
		}

		stats, err := e.queue.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Pending: %d  Synced: %d  Failed: %d (%d need an operator)\n\n",
			stats.Pending, stats.Synced, stats.Failed, stats.FailedTerminal)

		failed, err := e.queue.List(ctx, queue.Filter{Status: models.StatusFailed, Limit: listLimit})
		if err != nil {
			return err
		}
		if len(failed) == 0 {
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tENTITY\tRECORD\tOP\tATTEMPTS\tRETRY\tLAST ERROR")
		for _, entry := range failed {
			retry := "manual"
			if entry.Retryable && entry.NextRetryAt != nil {
				retry = entry.NextRetryAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n", entry.ID, entry.EntityType, entry.EntityID,
				entry.Operation, entry.Attempts, retry, entry.LastError)
		}
		return tw.Flush()
	}),
}

func init() {
	queueStatusCmd.Flags().Int64Var(&requeueID, "requeue", 0, "move this failed entry back to pending")
	queueStatusCmd.Flags().IntVar(&listLimit, "limit", 100, "failed entries to list")
	rootCmd.AddCommand(queueStatusCmd)
}
