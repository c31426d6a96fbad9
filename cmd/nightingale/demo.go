package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nightingale-sre/nightingale/internal/config"
	"github.com/nightingale-sre/nightingale/internal/domain"
	"github.com/nightingale-sre/nightingale/internal/nlog"
	"github.com/nightingale-sre/nightingale/internal/orchestrator"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted end-to-end demo scenario",
	Long: `demo builds a synthetic IncidentEvent for demo.repo_path (a broken
test, by convention) and drives it through the same orchestrator a real
webhook-sourced incident would use. Point NIGHTINGALE_CACHE_DIR at a
pre-populated response cache and leave NIGHTINGALE_API_KEY unset to replay it
deterministically.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	syncConfigFlagToEnv()

	cfg, err := config.Load(nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := buildLLMClient(cfg)
	if err != nil {
		return err
	}

	event := domain.IncidentEvent{
		ID:             uuid.NewString(),
		Kind:           "test",
		Timestamp:      time.Now().UTC(),
		RepositoryPath: cfg.Demo.RepoPath,
		CommitID:       "demo",
		Branch:         "main",
		FailedSteps: []domain.PipelineStep{
			{
				Name:   "pytest",
				Status: "failed",
				Logs:   "assert subtract(2, 2) == 1\nAssertionError: assert 0 == 1",
			},
		},
		Metadata: map[string]string{"failing_file": "test_math.py"},
	}

	orch := orchestrator.New(client, nlog.Default, orchestrator.WithModelTag(cfg.Agents.Marathon.Model))

	report, err := orch.ProcessIncident(context.Background(), event)
	if err != nil {
		return fmt.Errorf("process incident: %w", err)
	}

	printDecision(report)
	fmt.Println(report.RenderedText)
	return nil
}
