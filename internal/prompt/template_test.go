package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interllm/interllm/internal/scenario"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "all placeholders present",
			body: "{SCENARIO_ID} {SCENARIO_TITLE} {SCENARIO_BODY} {OUTPUT_PATH}",
		},
		{
			name:    "missing output path",
			body:    "{SCENARIO_ID} {SCENARIO_TITLE} {SCENARIO_BODY}",
			wantErr: "{OUTPUT_PATH}",
		},
		{
			name:    "empty template",
			body:    "",
			wantErr: "{SCENARIO_ID}",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := New(tc.body).Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDefaultTemplateIsValid(t *testing.T) {
	require.NoError(t, New(DefaultTemplate).Validate())
}

func TestRender(t *testing.T) {
	tmpl := New("id={SCENARIO_ID} title={SCENARIO_TITLE}\nbody={SCENARIO_BODY}\nout={OUTPUT_PATH}")
	s := scenario.Scenario{Index: 1, Number: "2", Title: "Streaming handoff", Body: "details"}

	got := tmpl.Render(s, "outputs/scenario_002.md")
	assert.Equal(t, "id=2 title=Streaming handoff\nbody=details\nout=outputs/scenario_002.md", got)
}

func TestRender_EmptyBodyAndBraceEscaping(t *testing.T) {
	tmpl := New("{SCENARIO_TITLE}|{SCENARIO_BODY}")

	got := tmpl.Render(scenario.Scenario{Title: "uses {curly} braces"}, "out.md")
	assert.Equal(t, "uses {{curly}} braces|(No extra details provided.)", got)
}

func TestReplaceAndFreeze(t *testing.T) {
	tmpl := New("first")
	require.NoError(t, tmpl.Replace("second"))
	assert.Equal(t, "second", tmpl.Body())

	tmpl.Freeze()
	assert.True(t, tmpl.Frozen())
	require.Error(t, tmpl.Replace("third"))
	assert.Equal(t, "second", tmpl.Body())
}

func TestResolveBase_SeedsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates", "base.txt")

	tmpl, err := ResolveBase(path)
	require.NoError(t, err)
	assert.Equal(t, New(DefaultTemplate).Body(), tmpl.Body())

	// The seed must be persisted for the next run.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, tmpl.Body()+"\n", string(data))
}

func TestResolveInput_PrefersExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("edited template\n"), 0o644))

	tmpl, err := ResolveInput(path, New("base template"))
	require.NoError(t, err)
	assert.Equal(t, "edited template", tmpl.Body())
}

func TestResolveInput_SeedsFromBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")

	tmpl, err := ResolveInput(path, New("base template"))
	require.NoError(t, err)
	assert.Equal(t, "base template", tmpl.Body())
}
