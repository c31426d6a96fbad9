// Package config provides configuration management for Nightingale.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (NIGHTINGALE_*)
// 3. Project config (.nightingale/config.yaml in cwd)
// 4. Home config (~/.nightingale/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all Nightingale configuration.
type Config struct {
	// SandboxDir names the subdirectory (relative to a repository) for
	// per-attempt sandbox copies. It is loaded and merged here but not passed
	// to the orchestrator, whose sandboxes always use
	// sandbox.DefaultSandboxBase.
	SandboxDir string `yaml:"sandbox_dir" json:"sandbox_dir"`

	// CleanupSandbox is the cleanup_sandbox setting. It is loaded and merged
	// here but not passed to the orchestrator, which always removes each
	// attempt's sandbox after verification.
	CleanupSandbox bool `yaml:"cleanup_sandbox" json:"cleanup_sandbox"`

	// CleanupSandboxSet tracks whether CleanupSandbox was explicitly set,
	// distinguishing "not set" from "explicitly set to false" so merge()
	// never lets a lower-priority source silently flip an explicit false
	// back to the default true.
	CleanupSandboxSet bool `yaml:"-" json:"-"`

	// Agents holds per-agent-role model selection.
	Agents AgentsConfig `yaml:"agents" json:"agents"`

	// Gemini holds the reasoning LLM client's rate limit.
	Gemini GeminiConfig `yaml:"gemini" json:"gemini"`

	// Demo holds settings for the scripted demo scenario.
	Demo DemoConfig `yaml:"demo" json:"demo"`
}

// AgentsConfig holds per-role model tags.
type AgentsConfig struct {
	Marathon MarathonConfig `yaml:"marathon" json:"marathon"`
}

// MarathonConfig configures the multi-attempt reasoning agent.
type MarathonConfig struct {
	// Model is the model tag sent with every structured generation request.
	Model string `yaml:"model" json:"model"`
}

// GeminiConfig configures the reasoning LLM client's transport.
type GeminiConfig struct {
	// RateLimit is the client-side requests-per-minute cap.
	RateLimit int `yaml:"rate_limit" json:"rate_limit"`
}

// DemoConfig configures the scripted end-to-end demo scenario.
type DemoConfig struct {
	// RepoPath is the repository the demo scenario runs an incident against.
	RepoPath string `yaml:"repo_path" json:"repo_path"`
}

// Default config values (used by Default and Resolve).
const (
	defaultSandboxDir     = ".sandbox"
	defaultCleanupSandbox = true
	defaultMarathonModel  = "nightingale-reasoner-marathon"
	defaultGeminiRPM      = 15
	defaultDemoRepoPath   = "."
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		SandboxDir:     defaultSandboxDir,
		CleanupSandbox: defaultCleanupSandbox,
		Agents: AgentsConfig{
			Marathon: MarathonConfig{Model: defaultMarathonModel},
		},
		Gemini: GeminiConfig{RateLimit: defaultGeminiRPM},
		Demo:   DemoConfig{RepoPath: defaultDemoRepoPath},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	if homeConfig, _ := loadFromPath(homeConfigPath()); homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}
	if projectConfig, _ := loadFromPath(projectConfigPath()); projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nightingale", "config.yaml")
}

// projectConfigPath returns the project config path.
func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("NIGHTINGALE_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".nightingale", "config.yaml")
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	var keys map[string]any
	if err := yaml.Unmarshal(data, &keys); err == nil {
		_, cfg.CleanupSandboxSet = keys["cleanup_sandbox"]
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("NIGHTINGALE_SANDBOX_DIR"); v != "" {
		cfg.SandboxDir = v
	}
	if v := os.Getenv("NIGHTINGALE_CLEANUP_SANDBOX"); v != "" {
		cfg.CleanupSandbox = v == "true" || v == "1"
		cfg.CleanupSandboxSet = true
	}
	if v := os.Getenv("NIGHTINGALE_MARATHON_MODEL"); v != "" {
		cfg.Agents.Marathon.Model = v
	}
	if v := os.Getenv("NIGHTINGALE_GEMINI_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Gemini.RateLimit = n
		}
	}
	if v := os.Getenv("NIGHTINGALE_DEMO_REPO_PATH"); v != "" {
		cfg.Demo.RepoPath = v
	}
	return cfg
}

// merge merges src into dst, with src values taking precedence. Zero-valued
// fields in src are treated as "not set" and left alone, which is why
// CleanupSandbox needs its own explicit-set tracking below rather than a
// plain bool check.
func merge(dst, src *Config) *Config {
	if src.SandboxDir != "" {
		dst.SandboxDir = src.SandboxDir
	}
	if src.CleanupSandboxSet {
		dst.CleanupSandbox = src.CleanupSandbox
	}
	if src.Agents.Marathon.Model != "" {
		dst.Agents.Marathon.Model = src.Agents.Marathon.Model
	}
	if src.Gemini.RateLimit != 0 {
		dst.Gemini.RateLimit = src.Gemini.RateLimit
	}
	if src.Demo.RepoPath != "" {
		dst.Demo.RepoPath = src.Demo.RepoPath
	}
	return dst
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.nightingale/config.yaml"
	SourceProject Source = ".nightingale/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

type resolved struct {
	Value  interface{} `json:"value"`
	Source Source      `json:"source"`
}

// ResolvedConfig shows config values with their sources.
type ResolvedConfig struct {
	SandboxDir     resolved `json:"sandbox_dir"`
	CleanupSandbox resolved `json:"cleanup_sandbox"`
	MarathonModel  resolved `json:"marathon_model"`
	GeminiRateLimit resolved `json:"gemini_rate_limit"`
	DemoRepoPath   resolved `json:"demo_repo_path"`
}

func resolveStringField(home, project, env, flag, def string) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != "" {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}

func resolveIntField(home, project, env, flag, def int) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if home != 0 {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != 0 {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != 0 {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != 0 {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}

// Resolve returns configuration with source tracking, using the precedence
// chain flags > env > project > home > defaults. Flag values are accepted
// as already-parsed since the CLI owns flag definitions. Only SandboxDir,
// MarathonModel and GeminiRateLimit are traced; CleanupSandbox and
// DemoRepoPath are always reported as their defaults with SourceDefault.
func Resolve(flagSandboxDir, flagMarathonModel string, flagGeminiRateLimit int) *ResolvedConfig {
	homeConfig, _ := loadFromPath(homeConfigPath())
	projectConfig, _ := loadFromPath(projectConfigPath())

	var homeSandboxDir, homeModel string
	var homeRPM int
	if homeConfig != nil {
		homeSandboxDir = homeConfig.SandboxDir
		homeModel = homeConfig.Agents.Marathon.Model
		homeRPM = homeConfig.Gemini.RateLimit
	}

	var projectSandboxDir, projectModel string
	var projectRPM int
	if projectConfig != nil {
		projectSandboxDir = projectConfig.SandboxDir
		projectModel = projectConfig.Agents.Marathon.Model
		projectRPM = projectConfig.Gemini.RateLimit
	}

	envSandboxDir := os.Getenv("NIGHTINGALE_SANDBOX_DIR")
	envModel := os.Getenv("NIGHTINGALE_MARATHON_MODEL")
	envRPM := 0
	if v := os.Getenv("NIGHTINGALE_GEMINI_RATE_LIMIT"); v != "" {
		envRPM, _ = strconv.Atoi(v)
	}

	return &ResolvedConfig{
		SandboxDir:      resolveStringField(homeSandboxDir, projectSandboxDir, envSandboxDir, flagSandboxDir, defaultSandboxDir),
		CleanupSandbox:  resolved{Value: defaultCleanupSandbox, Source: SourceDefault},
		MarathonModel:   resolveStringField(homeModel, projectModel, envModel, flagMarathonModel, defaultMarathonModel),
		GeminiRateLimit: resolveIntField(homeRPM, projectRPM, envRPM, flagGeminiRateLimit, defaultGeminiRPM),
		DemoRepoPath:    resolved{Value: defaultDemoRepoPath, Source: SourceDefault},
	}
}
