package orchestration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wesamahakem/gauntlet/internal/agents"
	"github.com/wesamahakem/gauntlet/internal/cache"
	"github.com/wesamahakem/gauntlet/internal/hooks"
	"github.com/wesamahakem/gauntlet/internal/models"
)

func engineFixture(t *testing.T, agent *stubAgent, opts ...EngineOption) (*Engine, models.TestPair) {
	t.Helper()

	scenario := &models.Scenario{
		Name:     "file-editing",
		Prompt:   "write a joke into joke.md",
		Setup:    map[string]string{"hello.txt": "hi"},
		Validate: []models.ValidationRule{{Kind: models.RuleFileExists, Path: "joke.md"}},
	}
	pair := models.TestPair{Scenario: scenario, Model: gptModel(), Runner: gooseRunner()}

	return NewEngine(newTestOrchestrator(t, agent), opts...), pair
}

func jokeWriter() *stubAgent {
	return &stubAgent{
		output: "wrote the joke\n",
		onTurn: func(req agents.TurnRequest) error {
			return os.WriteFile(filepath.Join(req.WorkDir, "joke.md"), []byte("a joke"), 0o644)
		},
	}
}

func TestEngineRunWithoutCache(t *testing.T) {
	agent := jokeWriter()
	engine, pair := engineFixture(t, agent)

	results, err := engine.Run(context.Background(), []models.TestPair{pair})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, models.StatusPassed, results[0].Status)
	require.False(t, results[0].Cached)
}

func TestEngineCacheHitSkipsExecution(t *testing.T) {
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	agent := jokeWriter()
	engine, pair := engineFixture(t, agent, WithCache(c))

	first, err := engine.Run(context.Background(), []models.TestPair{pair})
	require.NoError(t, err)
	require.False(t, first[0].Cached)
	require.Len(t, agent.requests, 1)
	require.NotEmpty(t, first[0].TranscriptPath)

	second, err := engine.Run(context.Background(), []models.TestPair{pair})
	require.NoError(t, err)
	require.True(t, second[0].Cached)
	require.Len(t, agent.requests, 1, "cache hit must not reinvoke the backend")

	require.Equal(t, first[0].Status, second[0].Status)
	require.Equal(t, first[0].Validations, second[0].Validations)
	require.Equal(t, first[0].ToolCalls, second[0].ToolCalls)
}

func TestEngineNoCacheBypassesLookupButStillStores(t *testing.T) {
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	agent := jokeWriter()
	engine, pair := engineFixture(t, agent, WithCache(c), WithNoCache())

	_, err = engine.Run(context.Background(), []models.TestPair{pair})
	require.NoError(t, err)
	_, err = engine.Run(context.Background(), []models.TestPair{pair})
	require.NoError(t, err)

	require.Len(t, agent.requests, 2, "lookups bypassed: both runs execute")
	require.Equal(t, 1, c.Len(), "writes still happen")
}

func TestEngineProgressEvents(t *testing.T) {
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	agent := jokeWriter()
	engine, pair := engineFixture(t, agent, WithCache(c))

	var events []EventType
	engine.OnProgress(func(e ProgressEvent) {
		events = append(events, e.EventType)
	})

	_, err = engine.Run(context.Background(), []models.TestPair{pair})
	require.NoError(t, err)
	require.Equal(t,
		[]EventType{EventMatrixStart, EventPairStart, EventPairComplete, EventMatrixComplete},
		events)

	events = nil
	_, err = engine.Run(context.Background(), []models.TestPair{pair})
	require.NoError(t, err)
	require.Equal(t,
		[]EventType{EventMatrixStart, EventPairStart, EventPairCached, EventMatrixComplete},
		events)
}

func TestEngineLifecycleHooks(t *testing.T) {
	dir := t.TempDir()
	agent := jokeWriter()
	engine, pair := engineFixture(t, agent, WithHooks(hooks.Config{
		BeforeRun: []hooks.Hook{{Command: "touch before.txt", WorkingDirectory: dir}},
		AfterRun:  []hooks.Hook{{Command: "touch after.txt", WorkingDirectory: dir}},
	}))

	_, err := engine.Run(context.Background(), []models.TestPair{pair})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "before.txt"))
	require.FileExists(t, filepath.Join(dir, "after.txt"))
}

func TestEngineBeforeRunHookFailureIsFatal(t *testing.T) {
	agent := jokeWriter()
	engine, pair := engineFixture(t, agent, WithHooks(hooks.Config{
		BeforeRun: []hooks.Hook{{Command: "false", ErrorOnFail: true}},
	}))

	_, err := engine.Run(context.Background(), []models.TestPair{pair})
	require.ErrorContains(t, err, "before_run hook failed")
	require.Empty(t, agent.requests)
}

func TestEngineCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agent := jokeWriter()
	engine, pair := engineFixture(t, agent)

	results, err := engine.Run(ctx, []models.TestPair{pair})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, results)
}
