// Package orchestration drives the expanded matrix: one pair at a time, one
// turn at a time, one attempt at a time. There is no internal parallelism --
// agent backends are heavyweight external processes and many are unsafe to
// run concurrently against a shared local inference endpoint.
package orchestration

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/wesamahakem/gauntlet/internal/agents"
	"github.com/wesamahakem/gauntlet/internal/models"
	"github.com/wesamahakem/gauntlet/internal/toolserver"
	"github.com/wesamahakem/gauntlet/internal/transcript"
	"github.com/wesamahakem/gauntlet/internal/validation"
	"github.com/wesamahakem/gauntlet/internal/workspace"
)

const defaultTurnTimeout = 10 * time.Minute

// AgentFactory resolves the adapter for a runner kind. Swappable in tests.
type AgentFactory func(kind models.RunnerKind) (agents.Agent, error)

// Orchestrator executes a single test pair end to end: workspace setup, the
// turn loop with early abort, validation, and metric derivation.
type Orchestrator struct {
	validator   *validation.Engine
	newAgent    AgentFactory
	workRoot    string
	turnTimeout time.Duration
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithAgentFactory overrides backend adapter construction.
func WithAgentFactory(f AgentFactory) OrchestratorOption {
	return func(o *Orchestrator) {
		o.newAgent = f
	}
}

// WithTurnTimeout bounds each backend invocation.
func WithTurnTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.turnTimeout = d
	}
}

// NewOrchestrator creates an orchestrator whose pair workspaces live under
// workRoot.
func NewOrchestrator(validator *validation.Engine, workRoot string, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		validator:   validator,
		newAgent:    agents.New,
		workRoot:    workRoot,
		turnTimeout: defaultTurnTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunPair executes every turn of one pair in order, short-circuiting on the
// first failed validation rule. The returned result also carries the full
// transcript text for archival by the caller.
func (o *Orchestrator) RunPair(ctx context.Context, pair models.TestPair, attempt int) (models.RunResult, string) {
	start := time.Now()

	result := models.RunResult{
		PairID:   pair.ID(),
		Scenario: pair.Scenario.Name,
		Model:    pair.Model.Name,
		Runner:   pair.Runner.Name,
		Status:   models.StatusPassed,
		Attempt:  attempt,
	}

	var buf transcript.Buffer
	workDir := o.pairWorkDir(pair)

	fail := func(err error) (models.RunResult, string) {
		result.Status = models.StatusFailed
		result.Errors = append(result.Errors, err.Error())
		buf.AppendError(err)
		result.DurationMs = time.Since(start).Milliseconds()
		return result, buf.String()
	}

	if err := workspace.Prepare(workDir, pair.Scenario.Setup); err != nil {
		return fail(fmt.Errorf("preparing workspace: %w", err))
	}

	agent, err := o.newAgent(pair.Runner.Kind)
	if err != nil {
		return fail(err)
	}

	turns := pair.Scenario.TurnSequence()

	// One session id for the whole pair, generated up front. Backends
	// without named sessions track continuation through their own
	// most-recent-session toggle and ignore it.
	sessionID := ""
	if len(turns) > 1 && pair.Runner.SupportsNamedSessions() {
		sessionID = fmt.Sprintf("%s-%d", pair.ID(), time.Now().Unix())
	}

	for i, turn := range turns {
		turnCtx, cancel := context.WithTimeout(ctx, o.turnTimeout)
		turnResult, err := agent.RunTurn(turnCtx, agents.TurnRequest{
			Model:     pair.Model,
			Runner:    pair.Runner,
			Prompt:    turn.Prompt,
			WorkDir:   workDir,
			SessionID: sessionID,
			Resume:    i > 0,
		})
		cancel()

		if turnResult != nil {
			buf.AppendTurn(i, turnResult.Transcript)
			if turnResult.SessionID != "" {
				sessionID = turnResult.SessionID
			}
		}
		if err != nil {
			return fail(fmt.Errorf("turn %d: %w", i+1, err))
		}

		outcomes := o.validator.Evaluate(ctx, i, turn.Validate, workDir)
		result.Validations = append(result.Validations, outcomes...)

		// Early abort: a scenario is only meaningful to continue if each
		// gate passes, so remaining turns are skipped on the first failure.
		if anyFailed(outcomes) {
			result.Status = models.StatusFailed
			break
		}
	}

	if result.Status == models.StatusPassed && !result.AllValidationsPassed() {
		result.Status = models.StatusFailed
	}

	text := buf.String()
	result.ToolCalls, result.Turns = deriveMetrics(pair.Runner.Kind, workDir, text)
	result.DurationMs = time.Since(start).Milliseconds()
	return result, text
}

func (o *Orchestrator) pairWorkDir(pair models.TestPair) string {
	return filepath.Join(o.workRoot, pair.ID())
}

func anyFailed(outcomes []models.ValidationOutcome) bool {
	for _, v := range outcomes {
		if !v.Passed {
			return true
		}
	}
	return false
}

// Backend-native transcript markers. toolMarkers match one tool invocation
// line; turnMarkers match one completed exchange.
var (
	toolMarkers = map[models.RunnerKind]*regexp.Regexp{
		models.RunnerGoose:    regexp.MustCompile(`(?m)^─── \S+ \|`),
		models.RunnerOpenCode: regexp.MustCompile(`(?m)^\|\s+\S+\s{2,}`),
		models.RunnerCodex:    regexp.MustCompile(`(?m)^\[.*\] exec `),
	}
	turnMarkers = map[models.RunnerKind]*regexp.Regexp{
		models.RunnerCodex: regexp.MustCompile(`(?m)^\[.*\] codex$`),
	}
)

// deriveMetrics estimates usage from the tool-server log and the transcript.
// Tool-call counting is exact for tool-server calls and textual for
// backend-native ones; the turn estimate falls back to calls/3 rounded up for
// backends without an explicit marker. Both are approximations and never
// feed pass/fail decisions.
func deriveMetrics(kind models.RunnerKind, workDir, transcriptText string) (toolCalls, turns int) {
	toolCalls = toolserver.CountCalls(toolserver.LogPath(workDir))
	if re, ok := toolMarkers[kind]; ok {
		toolCalls += len(re.FindAllString(transcriptText, -1))
	}

	if re, ok := turnMarkers[kind]; ok {
		if n := len(re.FindAllString(transcriptText, -1)); n > 0 {
			return toolCalls, n
		}
	}
	turns = (toolCalls + 2) / 3
	if turns < 1 {
		turns = 1
	}
	return toolCalls, turns
}
