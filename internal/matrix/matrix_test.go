package matrix

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wesamahakem/gauntlet/internal/models"
)

func testScenarios() []*models.Scenario {
	return []*models.Scenario{
		{Name: "file-editing", Prompt: "write a joke"},
		{Name: "refactoring", Prompt: "rename the function"},
	}
}

func testModels() []models.ModelSpec {
	return []models.ModelSpec{
		{Name: "gpt-4o", Provider: "openai", Model: "gpt-4o"},
		{Name: "sonnet", Provider: "anthropic", Model: "claude-sonnet-4"},
		{Name: "local-llama", Provider: "ollama", Model: "llama3", BaseURL: "http://localhost:11434"},
	}
}

func testRunners() []models.RunnerSpec {
	return []models.RunnerSpec{
		{Name: "goose-main", Kind: models.RunnerGoose, Binary: "goose"},
		{Name: "codex-main", Kind: models.RunnerCodex, Binary: "codex"},
	}
}

func TestExpandFullProduct(t *testing.T) {
	pairs, err := Expand(testScenarios(), testModels(), testRunners(), nil)
	require.NoError(t, err)

	// 2 scenarios x 3 models x 2 runners
	require.Len(t, pairs, 12)

	seen := map[string]bool{}
	for _, p := range pairs {
		require.False(t, seen[p.ID()], "duplicate pair %s", p.ID())
		seen[p.ID()] = true
	}
}

func TestExpandSortedByModelName(t *testing.T) {
	pairs, err := Expand(testScenarios(), testModels(), testRunners(), nil)
	require.NoError(t, err)

	for i := 1; i < len(pairs); i++ {
		require.LessOrEqual(t, pairs[i-1].Model.Name, pairs[i].Model.Name)
	}
}

func TestExpandMatrixEntries(t *testing.T) {
	entries := []models.MatrixSelection{
		{Scenario: "file-editing", Models: []string{"gpt-4o"}, Runners: []string{"goose-main"}},
		{Scenario: "refactoring", Models: []string{"gpt-4o", "sonnet"}},
	}

	pairs, err := Expand(testScenarios(), testModels(), testRunners(), entries)
	require.NoError(t, err)

	// 1x1 + 2x2 (runner list empty means all runners)
	require.Len(t, pairs, 5)

	for _, p := range pairs {
		if p.Scenario.Name == "file-editing" {
			require.Equal(t, "gpt-4o", p.Model.Name)
			require.Equal(t, "goose-main", p.Runner.Name)
		} else {
			require.NotEqual(t, "local-llama", p.Model.Name)
		}
	}
}

func TestExpandUnknownNames(t *testing.T) {
	tests := []struct {
		name    string
		entry   models.MatrixSelection
		wantErr string
	}{
		{
			name:    "unknown scenario",
			entry:   models.MatrixSelection{Scenario: "nope"},
			wantErr: `unknown scenario "nope"`,
		},
		{
			name:    "unknown model",
			entry:   models.MatrixSelection{Scenario: "file-editing", Models: []string{"gpt-5000"}},
			wantErr: `unknown model "gpt-5000"`,
		},
		{
			name:    "unknown runner",
			entry:   models.MatrixSelection{Scenario: "file-editing", Runners: []string{"claude"}},
			wantErr: `unknown runner "claude"`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Expand(testScenarios(), testModels(), testRunners(), []models.MatrixSelection{test.entry})
			require.ErrorContains(t, err, test.wantErr)
		})
	}
}

func TestExpandEntryOrderBeforeSort(t *testing.T) {
	// Two entries for the same model: entry order must be preserved within
	// the stable sort, so file-editing comes before refactoring.
	entries := []models.MatrixSelection{
		{Scenario: "file-editing", Models: []string{"gpt-4o"}, Runners: []string{"goose-main"}},
		{Scenario: "refactoring", Models: []string{"gpt-4o"}, Runners: []string{"goose-main"}},
	}

	pairs, err := Expand(testScenarios(), testModels(), testRunners(), entries)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	require.Equal(t, "file-editing", pairs[0].Scenario.Name)
	require.Equal(t, "refactoring", pairs[1].Scenario.Name)
}

func TestFilter(t *testing.T) {
	pairs, err := Expand(testScenarios(), testModels(), testRunners(), nil)
	require.NoError(t, err)

	t.Run("empty filters match everything", func(t *testing.T) {
		require.Len(t, Filter(pairs, nil, nil, nil), len(pairs))
	})

	t.Run("substring scenario filter", func(t *testing.T) {
		matched := Filter(pairs, []string{"editing"}, nil, nil)
		require.Len(t, matched, 6)
		for _, p := range matched {
			require.Equal(t, "file-editing", p.Scenario.Name)
		}
	})

	t.Run("combined filters", func(t *testing.T) {
		matched := Filter(pairs, []string{"refactoring"}, []string{"sonnet"}, []string{"codex"})
		require.Len(t, matched, 1)
		require.Equal(t, "refactoring-sonnet-codex-main", matched[0].ID())
	})

	t.Run("no match", func(t *testing.T) {
		require.Empty(t, Filter(pairs, []string{"missing"}, nil, nil))
	})
}
