package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pos-sync/internal/common/models"

	"github.com/spf13/cobra"
)

var duplicatesApply bool

var findDuplicatesCmd = &cobra.Command{
	Use:   "find-duplicates <entity>",
	Short: "List remote duplicates of an entity type",
	Long: `Group remote records by the duplicate rule of the entity type (see
DUPLICATE_RULES_FILE; inventory by productId and adjustmentType by default).
The earliest record of each group is kept.

With --apply the listed duplicates are deleted through the remote API.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType := models.EntityType(args[0])
		return withEnv(5*time.Minute, func(ctx context.Context, e *env) error {
			svc, err := e.diagnosticsService()
			if err != nil {
				return err
			}

			groups, err := svc.Duplicates(ctx, entityType)
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Printf("No duplicate %s found\n", entityType)
				return nil
			}
			for _, g := range groups {
				fmt.Printf("  [%s] keep %s, duplicates %s\n", g.Key, g.Original.ID(), strings.Join(g.DuplicateIDs(), ", "))
			}
			if !duplicatesApply {
				fmt.Println("\nRun again with --apply to delete the duplicates.")
				return nil
			}

			result, err := svc.RepairDuplicates(ctx, entityType)
			if err != nil {
				return err
			}
			fmt.Printf("\nDeleted %d record(s)\n", len(result.Deleted))
			for id, reason := range result.Failed {
				fmt.Printf("  failed %s: %s\n", id, reason)
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d deletion(s) failed", len(result.Failed))
			}
			return nil
		})(cmd, args)
	},
}

func init() {
	findDuplicatesCmd.Flags().BoolVar(&duplicatesApply, "apply", false, "delete the listed duplicates remotely")
	rootCmd.AddCommand(findDuplicatesCmd)
}
