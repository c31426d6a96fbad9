// Command nightingale is the CLI adapter around the incident resolution
// core: it decodes an incident event, drives the orchestrator, and renders
// the resulting report. It never talks to a CI provider's webhook directly
// (no signature verification, no listener) — that adaptation is left to
// whatever process feeds it an event file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	outputFlag  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "nightingale",
	Short: "Autonomous SRE agent for CI pipeline failures",
	Long: `nightingale reacts to a CI pipeline failure, proposes an LLM-generated
fix, verifies it in an isolated sandbox copy of the repository, and either
resolves it automatically or escalates to a human with a structured report.

Commands:
  resolve      Process one incident from a JSON event file
  demo         Run a scripted end-to-end demo scenario
  verify-key   Check that the configured API key is reachable`,
	SilenceUsage: true,
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .nightingale/config.yaml, then ~/.nightingale/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "output format (table, json)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "accepted but has no effect; every log line is always written")
}

func syncConfigFlagToEnv() {
	if cfgFile == "" {
		return
	}
	os.Setenv("NIGHTINGALE_CONFIG", cfgFile)
}
