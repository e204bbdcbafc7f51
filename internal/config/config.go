package config

import (
	"path/filepath"

	"github.com/interllm/interllm/internal/models"
)

// Default artifact filenames, resolved under the run's output directory
// unless overridden.
const (
	DefaultTodoFile     = "todo_scenarios.txt"
	DefaultResultsFile  = "MASTER_RESULTS.md"
	DefaultTemplateFile = "prompt_template.txt"
	DefaultManifestFile = "scenario_manifest.json"
)

// RunConfig carries the effective settings for one orchestration run: the
// loaded run spec plus path overrides and runtime flags supplied by the CLI.
type RunConfig struct {
	spec *models.RunSpec

	verbose       bool
	todoPath      string
	resultsPath   string
	templatePath  string
	manifestPath  string
	logDir        string
	transcriptDir string
}

// Option mutates a RunConfig during construction.
type Option func(*RunConfig)

// NewRunConfig builds a RunConfig from a run spec and functional options.
// Passing a nil option is a programming error and panics.
func NewRunConfig(spec *models.RunSpec, opts ...Option) *RunConfig {
	cfg := &RunConfig{spec: spec}
	for _, opt := range opts {
		if opt == nil {
			panic("config: nil Option passed to NewRunConfig")
		}
		opt(cfg)
	}
	return cfg
}

// WithVerbose enables verbose progress output.
func WithVerbose(v bool) Option {
	return func(c *RunConfig) { c.verbose = v }
}

// WithTodoPath overrides the scenario todo list location.
func WithTodoPath(path string) Option {
	return func(c *RunConfig) { c.todoPath = path }
}

// WithResultsPath overrides the master results document location.
func WithResultsPath(path string) Option {
	return func(c *RunConfig) { c.resultsPath = path }
}

// WithTemplatePath overrides the calibrated prompt template location.
func WithTemplatePath(path string) Option {
	return func(c *RunConfig) { c.templatePath = path }
}

// WithManifestPath overrides the run manifest location.
func WithManifestPath(path string) Option {
	return func(c *RunConfig) { c.manifestPath = path }
}

// WithLogDir sets the directory for run logs.
func WithLogDir(dir string) Option {
	return func(c *RunConfig) { c.logDir = dir }
}

// WithTranscriptDir sets the directory for per-scenario transcripts.
func WithTranscriptDir(dir string) Option {
	return func(c *RunConfig) { c.transcriptDir = dir }
}

// Spec returns the underlying run spec.
func (c *RunConfig) Spec() *models.RunSpec { return c.spec }

// Verbose reports whether verbose output is enabled.
func (c *RunConfig) Verbose() bool { return c.verbose }

// outputPath resolves an override or joins a default filename onto the
// spec's output directory.
func (c *RunConfig) outputPath(override, defaultName string) string {
	if override != "" {
		return override
	}
	return filepath.Join(c.spec.OutputDir, defaultName)
}

// TodoPath returns the scenario todo list location.
func (c *RunConfig) TodoPath() string {
	return c.outputPath(c.todoPath, DefaultTodoFile)
}

// ResultsPath returns the master results document location.
func (c *RunConfig) ResultsPath() string {
	return c.outputPath(c.resultsPath, DefaultResultsFile)
}

// TemplatePath returns the calibrated prompt template location.
func (c *RunConfig) TemplatePath() string {
	return c.outputPath(c.templatePath, DefaultTemplateFile)
}

// ManifestPath returns the run manifest location.
func (c *RunConfig) ManifestPath() string {
	return c.outputPath(c.manifestPath, DefaultManifestFile)
}

// LogDir returns the run log directory. Empty means run logging is disabled.
func (c *RunConfig) LogDir() string { return c.logDir }

// TranscriptDir returns the transcript directory. Empty means transcripts
// are disabled.
func (c *RunConfig) TranscriptDir() string { return c.transcriptDir }
