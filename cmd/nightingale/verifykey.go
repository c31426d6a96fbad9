package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nightingale-sre/nightingale/internal/llm"
)

var verifyKeyCmd = &cobra.Command{
	Use:   "verify-key",
	Short: "Check that the configured API key is reachable",
	Long: `verify-key sends a trivial, uncached generation request to confirm
NIGHTINGALE_API_KEY is present and the endpoint accepts it. It never touches
the response cache, so it cannot be satisfied by replay mode.`,
	RunE: runVerifyKey,
}

func init() {
	rootCmd.AddCommand(verifyKeyCmd)
}

func runVerifyKey(cmd *cobra.Command, args []string) error {
	apiKey := os.Getenv(llm.APIKeyEnvVar)
	if apiKey == "" {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "MISSING")
		return fmt.Errorf("%s is not set", llm.APIKeyEnvVar)
	}

	client := llm.New(apiKey, nil)
	if _, err := client.Generate(context.Background(), "ping", "", "verify-key"); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "UNREACHABLE")
		return fmt.Errorf("verify key: %w", err)
	}

	color.New(color.FgGreen, color.Bold).Println("OK")
	return nil
}
