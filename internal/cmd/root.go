// Package cmd implements the rfd2mcp command-line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MacromNex/rfdiffusion2-mcp/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected via ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	flagServerURL string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "rfd2mcp",
	Short: "Job manager for RFdiffusion2 and Chai-1 design procedures",
	Long: `rfd2mcp runs long-lived protein design procedures as managed background
jobs and exposes them over an HTTP API.

The serve command hosts the API. The submit and jobs commands talk to a
running server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := observability.InitCLILogger(flagLogLevel)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "http://localhost:8080", "Base URL of a running rfd2mcp server")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rfd2mcp %s (commit %s, built %s)\n",
			versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return fmt.Errorf("%s: %w (exit code %d)", message, err, code)
}
