package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/interllm/interllm/internal/scenario"
)

// Placeholders every template must carry. Rendering substitutes these
// literally; scenario text has its braces escaped so it can never introduce
// a new placeholder.
const (
	PlaceholderScenarioID    = "{SCENARIO_ID}"
	PlaceholderScenarioTitle = "{SCENARIO_TITLE}"
	PlaceholderScenarioBody  = "{SCENARIO_BODY}"
	PlaceholderOutputPath    = "{OUTPUT_PATH}"
)

var requiredPlaceholders = []string{
	PlaceholderScenarioID,
	PlaceholderScenarioTitle,
	PlaceholderScenarioBody,
	PlaceholderOutputPath,
}

// DefaultTemplate is the built-in baseline used to seed the base template
// file when none exists on disk.
const DefaultTemplate = `You are the Executor. Produce a concise, implementation-ready guidance note.

Scenario: {SCENARIO_ID}) {SCENARIO_TITLE}
Scenario details:
{SCENARIO_BODY}

Output requirements:
- Write the result to {OUTPUT_PATH}.
- Use Markdown headings and bullet lists.
- Sections: Scenario, When to use, Recommended approach, Implementation outline, Tradeoffs/risks, Validation checklist.
- Keep it under 250 words.
- ASCII only.
- Do not invent requirements beyond the scenario text.

After writing the file, reply with "DONE".`

const emptyBodyMarker = "(No extra details provided.)"

// Template is a prompt template with scenario placeholders. It starts as the
// baseline, may be adjusted during calibration, and is frozen afterwards.
type Template struct {
	body   string
	frozen bool
}

// New wraps a template body. The body is not validated here; call Validate
// before the first render.
func New(body string) *Template {
	return &Template{body: strings.TrimSpace(body)}
}

// Body returns the template text.
func (t *Template) Body() string { return t.body }

// Frozen reports whether the template has been locked for the batch phase.
func (t *Template) Frozen() bool { return t.frozen }

// Validate checks that every required placeholder is present.
func (t *Template) Validate() error {
	var missing []string
	for _, p := range requiredPlaceholders {
		if !strings.Contains(t.body, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("template missing placeholders: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Replace swaps the template body for a calibration candidate. Replacing a
// frozen template is a programming error.
func (t *Template) Replace(body string) error {
	if t.frozen {
		return fmt.Errorf("template is frozen")
	}
	t.body = strings.TrimSpace(body)
	return nil
}

// Freeze locks the template for the batch phase.
func (t *Template) Freeze() { t.frozen = true }

// Render substitutes the scenario's fields at the placeholders.
func (t *Template) Render(s scenario.Scenario, outputPath string) string {
	body := s.Body
	if body == "" {
		body = emptyBodyMarker
	}

	r := strings.NewReplacer(
		PlaceholderScenarioID, escapeBraces(s.Number),
		PlaceholderScenarioTitle, escapeBraces(s.Title),
		PlaceholderScenarioBody, escapeBraces(body),
		PlaceholderOutputPath, escapeBraces(outputPath),
	)
	return r.Replace(t.body)
}

// Write persists the template as a run artifact.
func (t *Template) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating template directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(t.body+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing template: %w", err)
	}
	return nil
}

// escapeBraces doubles braces in scenario text so substituted content can
// never be mistaken for a placeholder by downstream tooling.
func escapeBraces(s string) string {
	return strings.NewReplacer("{", "{{", "}", "}}").Replace(s)
}

// ResolveBase loads the baseline template, seeding the file with
// DefaultTemplate when it does not exist yet.
func ResolveBase(path string) (*Template, error) {
	return loadOrSeed(path, DefaultTemplate)
}

// ResolveInput loads the editable input template, seeding it from the base
// template when missing. The input template is the one calibration adjusts.
func ResolveInput(path string, base *Template) (*Template, error) {
	return loadOrSeed(path, base.Body())
}

// Load reads a template from disk without seeding.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", path, err)
	}
	return New(string(data)), nil
}

func loadOrSeed(path, fallback string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return New(string(data)), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading template %s: %w", path, err)
	}

	t := New(fallback)
	if err := t.Write(path); err != nil {
		return nil, err
	}
	return t, nil
}
