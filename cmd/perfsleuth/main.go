package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagVerbose bool
	flagDBPath  string
)

var rootCmd = &cobra.Command{
	Use:   "perfsleuth",
	Short: "Root-cause analysis for web performance regressions",
	Long: `perfsleuth collects lab and field signals for a page, runs the
analysis tasks the signals justify, and distills the findings into a
validated causal graph of root causes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", ".perfsleuth/runs.db", "path to the run archive database")
}

// newLogger builds the process logger. Debug level with --verbose,
// warnings only otherwise so reports stay readable.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if flagVerbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
