package models

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/interllm/interllm/internal/hooks"
)

// Reasoning effort levels accepted for the pass-through hint.
var reasoningEffortLevels = map[string]bool{
	"minimal": true,
	"low":     true,
	"medium":  true,
	"high":    true,
}

// RunSpec is the YAML run description: where the scenario list and templates
// live, which engine to drive, and how the batch loop behaves. CLI flags
// override individual fields after loading.
type RunSpec struct {
	Name            string            `yaml:"name"`
	Input           string            `yaml:"input"`
	InputTemplate   string            `yaml:"input_template,omitempty"`
	BaseTemplate    string            `yaml:"base_template,omitempty"`
	OutputDir       string            `yaml:"output_dir,omitempty"`
	Model           string            `yaml:"model,omitempty"`
	ReasoningEffort string            `yaml:"reasoning_effort,omitempty"`
	MaxScenarios    int               `yaml:"max_scenarios,omitempty"`
	Overwrite       bool              `yaml:"overwrite,omitempty"`
	RefineTemplate  bool              `yaml:"refine_template,omitempty"`
	Engine          EngineSpec        `yaml:"engine"`
	Hooks           hooks.HooksConfig `yaml:"hooks,omitempty"`
}

// EngineSpec selects and configures the agent engine. Options is free-form
// YAML decoded into the engine's own option struct.
type EngineSpec struct {
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options,omitempty"`
}

// DecodeOptions maps the free-form options block onto an engine-specific
// struct with `mapstructure` tags.
func (e EngineSpec) DecodeOptions(out any) error {
	if len(e.Options) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return fmt.Errorf("building engine options decoder: %w", err)
	}
	if err := dec.Decode(e.Options); err != nil {
		return fmt.Errorf("decoding engine options: %w", err)
	}
	return nil
}

// LoadRunSpec loads and validates a run spec from a YAML file.
func LoadRunSpec(path string) (*RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run spec: %w", err)
	}

	var spec RunSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing run spec %s: %w", path, err)
	}

	spec.ApplyDefaults()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// ApplyDefaults fills unset fields from the environment and built-in
// defaults. INTERLLM_MODEL and INTERLLM_REASONING_EFFORT mirror the CLI
// flags for unattended runs.
func (s *RunSpec) ApplyDefaults() {
	if s.Model == "" {
		s.Model = os.Getenv("INTERLLM_MODEL")
	}
	if s.ReasoningEffort == "" {
		s.ReasoningEffort = os.Getenv("INTERLLM_REASONING_EFFORT")
	}
	if s.OutputDir == "" {
		s.OutputDir = "outputs"
	}
	if s.Engine.Type == "" {
		s.Engine.Type = "copilot-sdk"
	}
}

// Validate checks the spec for contradictions before any agent call is made.
func (s *RunSpec) Validate() error {
	if s.Input == "" {
		return fmt.Errorf("run spec: input scenario list is required")
	}
	if s.MaxScenarios < 0 {
		return fmt.Errorf("run spec: max_scenarios must be >= 0, got %d", s.MaxScenarios)
	}
	if s.ReasoningEffort != "" && !reasoningEffortLevels[s.ReasoningEffort] {
		return fmt.Errorf("run spec: reasoning_effort must be one of minimal, low, medium, high; got %q", s.ReasoningEffort)
	}
	switch s.Engine.Type {
	case "copilot-sdk", "mock":
	default:
		return fmt.Errorf("run spec: unknown engine type %q", s.Engine.Type)
	}
	return nil
}
