package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nightingale-sre/nightingale/internal/config"
	"github.com/nightingale-sre/nightingale/internal/domain"
	"github.com/nightingale-sre/nightingale/internal/formatter"
	"github.com/nightingale-sre/nightingale/internal/llm"
	"github.com/nightingale-sre/nightingale/internal/nlog"
	"github.com/nightingale-sre/nightingale/internal/orchestrator"
)

var eventFile string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Process one incident from a JSON event file",
	Long: `resolve decodes a domain.IncidentEvent from --event, drives the
orchestrator's process_incident pipeline against it, and prints the
resulting decision and report.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&eventFile, "event", "", "path to a JSON-encoded IncidentEvent (required)")
	resolveCmd.MarkFlagRequired("event")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	syncConfigFlagToEnv()

	cfg, err := config.Load(nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	raw, err := os.ReadFile(eventFile)
	if err != nil {
		return fmt.Errorf("read event file: %w", err)
	}
	var event domain.IncidentEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	client, err := buildLLMClient(cfg)
	if err != nil {
		return err
	}

	logger := nlog.Default
	orch := orchestrator.New(client, logger, orchestrator.WithModelTag(cfg.Agents.Marathon.Model))

	report, err := orch.ProcessIncident(context.Background(), event)
	if err != nil {
		return fmt.Errorf("process incident: %w", err)
	}

	printDecision(report)

	switch outputFlag {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "table":
		printAttemptsTable(report)
	default:
		fmt.Println(report.RenderedText)
	}
	return nil
}

// printAttemptsTable renders one row per attempt: index, pass/fail counts,
// and failure reason if the attempt never reached verification.
func printAttemptsTable(report domain.IncidentReport) {
	t := formatter.NewTable(os.Stdout, "ATTEMPT", "RESULT", "TESTS", "REASON")
	t.SetMaxWidth(3, 60)
	for _, a := range report.Attempts {
		result := "n/a"
		tests := "-"
		if a.VerificationResult != nil {
			if a.VerificationResult.Success {
				result = "pass"
			} else {
				result = "fail"
			}
			tests = fmt.Sprintf("%d/%d", a.VerificationResult.TestsPassed, a.VerificationResult.TestsTotal)
		}
		t.AddRow(fmt.Sprintf("%d", a.AttemptIndex), result, tests, a.FailureReason)
	}
	t.Render()
}

// printDecision writes a single colorized status line ahead of the full
// report: green for resolve, yellow for escalate. Plain stdout otherwise
// falls back to color's own no-TTY detection.
func printDecision(report domain.IncidentReport) {
	switch report.Decision {
	case domain.DecisionResolve:
		color.New(color.FgGreen, color.Bold).Printf("RESOLVED")
	default:
		color.New(color.FgYellow, color.Bold).Printf("ESCALATED")
	}
	fmt.Printf(" incident %s (score %.3f)\n", report.IncidentID, report.Score)
}

func buildLLMClient(cfg *config.Config) (*llm.Client, error) {
	cacheDir := os.Getenv("NIGHTINGALE_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = ".nightingale_cache"
	}
	cache, err := llm.NewResponseCache(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("open response cache: %w", err)
	}

	apiKey := os.Getenv(llm.APIKeyEnvVar)
	client := llm.New(apiKey, cache, llm.WithRPMLimit(cfg.Gemini.RateLimit), llm.WithLogger(nlog.Default))
	if apiKey == "" {
		client.RecordMode = true
	}
	return client, nil
}
