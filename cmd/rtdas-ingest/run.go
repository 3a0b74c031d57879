package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion pass over every configured source",
	Long: `Fetches, validates, and persists every configured source once, prints one
summary line per source, and exits non-zero if any source failed.`,
	Args: cobra.NoArgs,
	RunE: runOnce,
}

func runOnce(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RunTimeout)
	defer cancel()

	report := a.orchestrator.Run(ctx, a.cfg.Sources)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run finished @ %s\n", report.FinishedAt.Format(time.RFC3339))
	for _, line := range report.Lines() {
		fmt.Fprintln(out, line)
	}

	if report.Failed() {
		return fmt.Errorf("ingestion run failed for one or more sources")
	}
	return nil
}
