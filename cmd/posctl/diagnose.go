package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"pos-sync/internal/features/diagnostics"

	"github.com/spf13/cobra"
)

var diagnoseXLSX string

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Compare the local store with the remote one",
	Long: `Load both stores read-only and print the divergence report: records
missing on either side, field mismatches beyond TOLERANCE, purchase totals
that do not add up, remote duplicates and queue integrity issues.

Nothing is modified. Use --xlsx to also export the report as a workbook.`,
	RunE: withEnv(5*time.Minute, func(ctx context.Context, e *env) error {
		svc, err := e.diagnosticsService()
		if err != nil {
			return err
		}
		report, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		if err := diagnostics.WriteText(os.Stdout, report); err != nil {
			return err
		}

		if diagnoseXLSX != "" {
			f, err := os.Create(diagnoseXLSX)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := diagnostics.WriteXLSX(f, report); err != nil {
				return err
			}
			fmt.Printf("\nReport written to %s\n", diagnoseXLSX)
		}
		return nil
	}),
}

var checkPurchasesCmd = &cobra.Command{
	Use:   "check-purchases",
	Short: "Recompute purchase item totals on both stores",
	RunE: withEnv(5*time.Minute, func(ctx context.Context, e *env) error {
		svc, err := e.diagnosticsService()
		if err != nil {
			return err
		}
		issues, err := svc.CheckPurchases(ctx)
		if err != nil {
			return err
		}
		if len(issues) == 0 {
			fmt.Printf("All purchase totals within %.0f%%\n", e.cfg.Tolerance*100)
			return nil
		}
		fmt.Printf("%d purchase item(s) outside %.0f%%:\n", len(issues), e.cfg.Tolerance*100)
		for _, p := range issues {
			fmt.Printf("  [%s] %s: %.2f / %.2f * %.2f = %.2f, stored %.2f\n",
				p.Source, p.ID, p.QtyUnits, p.UnitsPerBox, p.UnitCost, p.Expected, p.Stored)
		}
		return nil
	}),
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseXLSX, "xlsx", "", "also write the report to this .xlsx file")
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(checkPurchasesCmd)
}
