package validation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesamahakem/gauntlet/internal/models"
	"github.com/wesamahakem/gauntlet/internal/toolserver"
)

func evalOne(t *testing.T, workDir string, rule models.ValidationRule) models.ValidationOutcome {
	t.Helper()
	outcomes := NewEngine().Evaluate(context.Background(), 0, []models.ValidationRule{rule}, workDir)
	require.Len(t, outcomes, 1)
	return outcomes[0]
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "joke.md"), []byte("why"), 0644))

	out := evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileExists, Path: "joke.md"})
	assert.True(t, out.Passed)

	out = evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileExists, Path: "missing.md"})
	assert.False(t, out.Passed)
	assert.Contains(t, out.Message, "file not found")
}

func TestFileNotEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "full.txt"), []byte("x"), 0644))

	assert.False(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileNotEmpty, Path: "empty.txt"}).Passed)
	assert.True(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileNotEmpty, Path: "full.txt"}).Passed)
	assert.False(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileNotEmpty, Path: "nope.txt"}).Passed)
}

func TestFileContains(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello world"), 0644))

	assert.True(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileContains, Path: "hello.txt", Text: "world"}).Passed)
	assert.False(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileContains, Path: "hello.txt", Text: "goodbye"}).Passed)
}

func TestFileMatchRules(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi there"), 0644))

	assert.True(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileMatches, Path: "hello.txt", Pattern: "hi"}).Passed)
	assert.False(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileMatches, Path: "hello.txt", Pattern: "^there"}).Passed)
	assert.True(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileNotMatches, Path: "hello.txt", Pattern: "bye"}).Passed)
	assert.False(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileNotMatches, Path: "hello.txt", Pattern: "hi"}).Passed)

	// A missing file is a plain failure for both polarities.
	assert.False(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileMatches, Path: "nope.txt", Pattern: "x"}).Passed)
	assert.False(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileNotMatches, Path: "nope.txt", Pattern: "x"}).Passed)

	// An invalid pattern fails without panicking.
	out := evalOne(t, dir, models.ValidationRule{Kind: models.RuleFileMatches, Path: "hello.txt", Pattern: "("})
	assert.False(t, out.Passed)
	assert.Contains(t, out.Message, "invalid pattern")
}

func TestCommandSucceeds(t *testing.T) {
	dir := t.TempDir()

	assert.True(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleCommandSucceeds, Command: "true"}).Passed)

	out := evalOne(t, dir, models.ValidationRule{Kind: models.RuleCommandSucceeds, Command: "false"})
	assert.False(t, out.Passed)
	assert.Contains(t, out.Message, "command failed")

	// Spawn failure is also a plain failure.
	out = evalOne(t, dir, models.ValidationRule{Kind: models.RuleCommandSucceeds, Command: "/no/such/binary-xyz"})
	assert.False(t, out.Passed)
}

func TestCommandRunsInWorkDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "present.txt"), []byte("x"), 0644))

	assert.True(t, evalOne(t, dir, models.ValidationRule{Kind: models.RuleCommandSucceeds, Command: "test -f present.txt"}).Passed)
}

func TestToolCalledEmptyLog(t *testing.T) {
	out := evalOne(t, t.TempDir(), models.ValidationRule{Kind: models.RuleToolCalled, Tool: "get_weather"})
	assert.False(t, out.Passed)
	assert.Contains(t, out.Message, "never called")
}

func TestToolCalledMatching(t *testing.T) {
	dir := t.TempDir()
	log := `{"tool":"get_weather","args":{"city":"Tokyo","days":3}}
{"tool":"send_email","args":{"to":"a@b.c"}}
`
	require.NoError(t, os.WriteFile(toolserver.LogPath(dir), []byte(log), 0644))

	// Literal args require exact equality.
	assert.True(t, evalOne(t, dir, models.ValidationRule{
		Kind: models.RuleToolCalled, Tool: "get_weather",
		Args: map[string]string{"city": "Tokyo"},
	}).Passed)
	assert.False(t, evalOne(t, dir, models.ValidationRule{
		Kind: models.RuleToolCalled, Tool: "get_weather",
		Args: map[string]string{"city": "Osaka"},
	}).Passed)

	// Numeric args compare via their natural string form.
	assert.True(t, evalOne(t, dir, models.ValidationRule{
		Kind: models.RuleToolCalled, Tool: "get_weather",
		Args: map[string]string{"days": "3"},
	}).Passed)

	// Pattern args match any value satisfying the pattern.
	assert.True(t, evalOne(t, dir, models.ValidationRule{
		Kind: models.RuleToolCalled, Tool: "get_weather",
		ArgsMatch: map[string]string{"city": "^Tok"},
	}).Passed)
	assert.False(t, evalOne(t, dir, models.ValidationRule{
		Kind: models.RuleToolCalled, Tool: "get_weather",
		ArgsMatch: map[string]string{"city": "^Osa"},
	}).Passed)

	// Wrong tool name fails even when args would match.
	assert.False(t, evalOne(t, dir, models.ValidationRule{
		Kind: models.RuleToolCalled, Tool: "get_forecast",
		Args: map[string]string{"city": "Tokyo"},
	}).Passed)
}

func TestCustomHook(t *testing.T) {
	dir := t.TempDir()
	engine := NewEngine()
	engine.RegisterHook("always-yes", func(ctx context.Context, workDir string, params map[string]any) (bool, string, error) {
		return true, "ok", nil
	})
	engine.RegisterHook("broken", func(ctx context.Context, workDir string, params map[string]any) (bool, string, error) {
		return false, "", fmt.Errorf("boom")
	})

	engine.RegisterHook("min-files", func(ctx context.Context, workDir string, params map[string]any) (bool, string, error) {
		var p struct {
			Min int `mapstructure:"min"`
		}
		if err := DecodeParams(params, &p); err != nil {
			return false, "", err
		}
		entries, err := os.ReadDir(workDir)
		if err != nil {
			return false, "", err
		}
		return len(entries) >= p.Min, fmt.Sprintf("%d files present", len(entries)), nil
	})

	outcomes := engine.Evaluate(context.Background(), 0, []models.ValidationRule{
		{Kind: models.RuleCustom, Hook: "always-yes"},
		{Kind: models.RuleCustom, Hook: "broken"},
		{Kind: models.RuleCustom, Hook: "unregistered"},
		{Kind: models.RuleCustom, Hook: "min-files", Params: map[string]any{"min": 1}},
	}, dir)
	require.Len(t, outcomes, 4)
	assert.True(t, outcomes[0].Passed)
	assert.False(t, outcomes[1].Passed)
	assert.Contains(t, outcomes[1].Message, "boom")
	assert.False(t, outcomes[2].Passed)
	assert.Contains(t, outcomes[2].Message, "no custom validator")
	assert.False(t, outcomes[3].Passed) // empty temp dir has no files
}

func TestEvaluateRecordsTurnAndLabel(t *testing.T) {
	outcomes := NewEngine().Evaluate(context.Background(), 2, []models.ValidationRule{
		{Kind: models.RuleFileExists, Path: "a.txt"},
	}, t.TempDir())
	require.Len(t, outcomes, 1)
	assert.Equal(t, 2, outcomes[0].Turn)
	assert.Equal(t, "file a.txt exists", outcomes[0].Label)
}
