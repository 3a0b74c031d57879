// Command rtdas-ingest pulls telemetry readings and station master data from
// the configured RTDAS sources and stores them in PostgreSQL.
//
// Usage:
//
//	rtdas-ingest run     # one ingestion run, exit 1 if any source failed
//	rtdas-ingest serve   # scheduled runs plus health, status, and metrics endpoints
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "rtdas-ingest",
	Short: "Ingest RTDAS telemetry and station master data into PostgreSQL",
	Long: `rtdas-ingest fetches readings from every configured source concurrently,
drops records carrying fault values, and writes the rest idempotently.

Configuration comes from the environment and the SOURCES_FILE descriptor file.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
