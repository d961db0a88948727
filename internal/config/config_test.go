package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wesamahakem/gauntlet/internal/models"
)

const validSuite = `
name: smoke
models:
  - name: gpt-4o
    provider: openai
    model: gpt-4o
  - name: local-llama
    provider: ollama
    model: llama3
    base_url: http://localhost:11434
runners:
  - name: goose-main
    kind: goose
    binary: goose
    extensions: [todo, developer]
scenarios:
  - name: file-editing
    prompt: write a joke into joke.md
    setup:
      hello.txt: hi
    validate:
      - type: file_exists
        path: joke.md
      - type: file_matches
        path: hello.txt
        regex: hi
matrix:
  - scenario: file-editing
    models: [gpt-4o]
defaults:
  repeat: 3
  cache_dir: .gauntlet-cache
`

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	suite, err := Load(writeSuite(t, validSuite))
	require.NoError(t, err)

	require.Equal(t, "smoke", suite.Name)
	require.Len(t, suite.Models, 2)
	require.Equal(t, "http://localhost:11434", suite.Models[1].BaseURL)

	require.Len(t, suite.Runners, 1)
	require.Equal(t, models.RunnerGoose, suite.Runners[0].Kind)

	require.Len(t, suite.Scenarios, 1)
	scenario := suite.Scenarios[0]
	require.Equal(t, "file-editing", scenario.Name)
	require.Len(t, scenario.Validate, 2)
	require.Equal(t, models.RuleFileMatches, scenario.Validate[1].Kind)
	require.Equal(t, "hi", scenario.Validate[1].Pattern)

	require.Len(t, suite.Matrix, 1)
	require.Equal(t, 3, suite.Defaults.Repeat)
}

func TestLoadScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	scenariosDir := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenariosDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scenariosDir, "refactor.yaml"), []byte(`
name: refactoring
prompt: rename the function
validate:
  - type: command_succeeds
    command: grep -q renamed main.go
`), 0o644))

	suitePath := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(suitePath, []byte(`
models:
  - name: gpt-4o
    provider: openai
    model: gpt-4o
runners:
  - name: goose-main
    kind: goose
    binary: goose
scenario_files:
  - "scenarios/*.yaml"
`), 0o644))

	suite, err := Load(suitePath)
	require.NoError(t, err)
	require.Len(t, suite.Scenarios, 1)
	require.Equal(t, "refactoring", suite.Scenarios[0].Name)
}

func TestLoadSchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing runners",
			content: `
models:
  - name: gpt-4o
    provider: openai
    model: gpt-4o
`,
			wantErr: "is invalid",
		},
		{
			name: "unknown runner kind",
			content: `
models:
  - name: gpt-4o
    provider: openai
    model: gpt-4o
runners:
  - name: bad
    kind: claude
    binary: claude
scenarios:
  - name: s
    prompt: p
`,
			wantErr: "is invalid",
		},
		{
			name: "unknown rule type",
			content: `
models:
  - name: gpt-4o
    provider: openai
    model: gpt-4o
runners:
  - name: goose-main
    kind: goose
    binary: goose
scenarios:
  - name: s
    prompt: p
    validate:
      - type: file_present
        path: x
`,
			wantErr: "is invalid",
		},
		{
			name:    "not yaml",
			content: "models: [}{",
			wantErr: "YAML parse error",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeSuite(t, test.content))
			require.ErrorContains(t, err, test.wantErr)
		})
	}
}

func TestLoadSemanticErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "no scenarios",
			content: `
models:
  - name: gpt-4o
    provider: openai
    model: gpt-4o
runners:
  - name: goose-main
    kind: goose
    binary: goose
`,
			wantErr: "declares no scenarios",
		},
		{
			name: "prompt and turns together",
			content: `
models:
  - name: gpt-4o
    provider: openai
    model: gpt-4o
runners:
  - name: goose-main
    kind: goose
    binary: goose
scenarios:
  - name: s
    prompt: p
    turns:
      - prompt: q
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "duplicate scenario names",
			content: `
models:
  - name: gpt-4o
    provider: openai
    model: gpt-4o
runners:
  - name: goose-main
    kind: goose
    binary: goose
scenarios:
  - name: s
    prompt: p
  - name: s
    prompt: q
`,
			wantErr: `duplicate scenario name "s"`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeSuite(t, test.content))
			require.ErrorContains(t, err, test.wantErr)
		})
	}
}

func TestValidateScenarioBytes(t *testing.T) {
	require.Empty(t, ValidateScenarioBytes([]byte(`
name: ok
prompt: do the thing
`)))

	errs := ValidateScenarioBytes([]byte(`
prompt: no name
`))
	require.NotEmpty(t, errs)
}
