package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	dbPath      string
	metricsAddr string
	verbose     bool
	jsonOutput  bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forge",
		Short: "OpenForge - Build Description Generator",
		Long: `OpenForge turns declarative module descriptions into build edges for
a compiler-driving executor.

Features:
  - Typed module descriptions via CUE
  - Light procedural descriptions via Starlark
  - Concurrent dependency-graph resolution
  - Per-target build-edge synthesis with extern and link assembly
  - Policy enforcement via OPA/rego
  - Run history and changed-edge diffing via SQLite`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "run-history database path (optional)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics", "", "Prometheus listen address (optional, e.g. :9090)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newGenCommand())
	rootCmd.AddCommand(newGraphCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
