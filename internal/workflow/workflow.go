// Package workflow extracts test invocation commands from a repository's
// GitHub Actions workflow descriptors, falling back to project-marker-based
// detection when no workflow declares anything test-shaped.
package workflow

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TestKeywords indicate a job or step is test-related, matched against
// lowercased job name, step name, or run line.
var TestKeywords = []string{
	"test", "pytest", "jest", "mocha", "rspec",
	"unittest", "nose", "check", "verify", "spec",
}

// Parser extracts test commands from a repository's workflow files.
type Parser struct {
	repoPath string
}

// New returns a Parser rooted at repoPath.
func New(repoPath string) *Parser {
	return &Parser{repoPath: repoPath}
}

func (p *Parser) workflowsDir() string {
	return filepath.Join(p.repoPath, ".github", "workflows")
}

// FindWorkflowFiles returns every *.yml/*.yaml file under
// .github/workflows, sorted by name.
func (p *Parser) FindWorkflowFiles() ([]string, error) {
	entries, err := os.ReadDir(p.workflowsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, filepath.Join(p.workflowsDir(), e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

type workflowStep struct {
	Name string `yaml:"name"`
	Run  string `yaml:"run"`
}

type workflowJob struct {
	Steps []workflowStep `yaml:"steps"`
}

type workflowDoc struct {
	Jobs map[string]workflowJob `yaml:"jobs"`
}

// ParseWorkflow decodes one workflow YAML file. A malformed file yields an
// empty document rather than an error — one bad workflow file must never
// abort the whole extraction.
func (p *Parser) ParseWorkflow(path string) workflowDoc {
	data, err := os.ReadFile(path)
	if err != nil {
		return workflowDoc{}
	}
	var doc workflowDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return workflowDoc{}
	}
	return doc
}

func containsKeyword(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range TestKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ExtractTestCommands walks every job and step in doc, collecting the run
// lines of steps that look test-related, in job-then-step order.
func ExtractTestCommands(doc workflowDoc) []string {
	var commands []string

	jobNames := make([]string, 0, len(doc.Jobs))
	for name := range doc.Jobs {
		jobNames = append(jobNames, name)
	}
	sort.Strings(jobNames)

	for _, jobName := range jobNames {
		job := doc.Jobs[jobName]
		isTestJob := containsKeyword(jobName)

		for _, step := range job.Steps {
			if step.Run == "" {
				continue
			}
			isTestStep := isTestJob || containsKeyword(step.Name) || containsKeyword(step.Run)
			if !isTestStep {
				continue
			}
			for _, line := range strings.Split(strings.TrimSpace(step.Run), "\n") {
				line = strings.TrimSpace(line)
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				commands = append(commands, line)
			}
		}
	}
	return commands
}

func dedupPreserveOrder(cmds []string) []string {
	seen := make(map[string]bool, len(cmds))
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// markerFallbacks maps a marker file, checked in order, to the test command
// its presence implies. go.mod is checked ahead of the rest since this repo
// is itself Go and the original's own language markers list Go explicitly.
var markerFallbacks = []struct {
	marker  string
	command string
}{
	{"go.mod", "go test ./..."},
	{"Cargo.toml", "cargo test"},
	{"package.json", "npm test"},
	{"pyproject.toml", "python -m pytest -v"},
	{"setup.py", "python -m pytest -v"},
	{"requirements.txt", "python -m pytest -v"},
}

const finalFallback = "python -m pytest -v"

// detectByMarkerFiles checks for project dependency manifests and returns a
// single language-appropriate test command, defaulting to pytest when
// nothing is recognized.
func (p *Parser) detectByMarkerFiles() []string {
	for _, mf := range markerFallbacks {
		if _, err := os.Stat(filepath.Join(p.repoPath, mf.marker)); err == nil {
			return []string{mf.command}
		}
	}
	return []string{finalFallback}
}

// GetTestCommands returns every test command found across the repository's
// workflow files, deduplicated preserving order, or a marker-based fallback
// when workflows declare nothing test-shaped.
func (p *Parser) GetTestCommands() ([]string, error) {
	files, err := p.FindWorkflowFiles()
	if err != nil {
		return nil, err
	}

	var all []string
	for _, f := range files {
		doc := p.ParseWorkflow(f)
		all = append(all, ExtractTestCommands(doc)...)
	}

	if len(all) > 0 {
		return dedupPreserveOrder(all), nil
	}
	return p.detectByMarkerFiles(), nil
}

// Info is the metadata summary analogous to the original's
// get_workflow_info().
type Info struct {
	WorkflowsFound int      `json:"workflows_found"`
	WorkflowFiles  []string `json:"workflow_files"`
	TestCommands   []string `json:"test_commands"`
	HasCI          bool     `json:"has_ci"`
}

// GetWorkflowInfo returns comprehensive workflow metadata for the repo.
func (p *Parser) GetWorkflowInfo() (Info, error) {
	files, err := p.FindWorkflowFiles()
	if err != nil {
		return Info{}, err
	}
	cmds, err := p.GetTestCommands()
	if err != nil {
		return Info{}, err
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	return Info{
		WorkflowsFound: len(files),
		WorkflowFiles:  names,
		TestCommands:   cmds,
		HasCI:          len(files) > 0,
	}, nil
}
