// Package validation evaluates declarative assertions against workspace
// state, command exit codes, and the tool-server call log.
package validation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/wesamahakem/gauntlet/internal/models"
	"github.com/wesamahakem/gauntlet/internal/toolserver"
)

// defaultCommandTimeout bounds command_succeeds rules so a hung command
// cannot stall the whole run.
const defaultCommandTimeout = 30 * time.Second

// HookFunc is a registered custom validator. It returns pass/fail and an
// optional message; an error marks the rule failed with the error text.
type HookFunc func(ctx context.Context, workDir string, params map[string]any) (bool, string, error)

// Engine evaluates validation rules. Rules are independent of each other:
// each one is fully self-contained and never consults another's outcome.
type Engine struct {
	hooks          map[string]HookFunc
	commandTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithCommandTimeout overrides the per-command timeout for command_succeeds
// rules.
func WithCommandTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.commandTimeout = d
	}
}

// NewEngine creates a rule engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		hooks:          map[string]HookFunc{},
		commandTimeout: defaultCommandTimeout,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RegisterHook registers a named custom validator for RuleCustom rules.
func (e *Engine) RegisterHook(name string, fn HookFunc) {
	e.hooks[name] = fn
}

// Evaluate runs every rule against workDir and returns one outcome per rule,
// in rule order. Evaluation never returns an error: failures of any kind
// (missing files, spawn failures, bad patterns) are failed outcomes with a
// message, never thrown.
func (e *Engine) Evaluate(ctx context.Context, turn int, rules []models.ValidationRule, workDir string) []models.ValidationOutcome {
	outcomes := make([]models.ValidationOutcome, 0, len(rules))
	for _, rule := range rules {
		passed, msg := e.evaluateRule(ctx, rule, workDir)
		outcomes = append(outcomes, models.ValidationOutcome{
			Turn:    turn,
			Kind:    rule.Kind,
			Label:   rule.DefaultLabel(),
			Passed:  passed,
			Message: msg,
		})
	}
	return outcomes
}

func (e *Engine) evaluateRule(ctx context.Context, rule models.ValidationRule, workDir string) (bool, string) {
	switch rule.Kind {
	case models.RuleFileExists:
		return checkFileExists(workDir, rule.Path)
	case models.RuleFileNotEmpty:
		return checkFileNotEmpty(workDir, rule.Path)
	case models.RuleFileContains:
		return checkFileContains(workDir, rule.Path, rule.Text)
	case models.RuleFileMatches:
		return checkFileMatches(workDir, rule.Path, rule.Pattern, true)
	case models.RuleFileNotMatches:
		return checkFileMatches(workDir, rule.Path, rule.Pattern, false)
	case models.RuleCommandSucceeds:
		return e.checkCommand(ctx, workDir, rule.Command)
	case models.RuleToolCalled:
		return checkToolCalled(workDir, rule)
	case models.RuleCustom:
		return e.checkCustom(ctx, workDir, rule)
	default:
		return false, fmt.Sprintf("unknown rule kind %q", rule.Kind)
	}
}

func checkFileExists(workDir, relPath string) (bool, string) {
	if _, err := os.Stat(filepath.Join(workDir, relPath)); err != nil {
		return false, fmt.Sprintf("file not found: %s", relPath)
	}
	return true, ""
}

func checkFileNotEmpty(workDir, relPath string) (bool, string) {
	info, err := os.Stat(filepath.Join(workDir, relPath))
	if err != nil {
		return false, fmt.Sprintf("file not found: %s", relPath)
	}
	if info.Size() == 0 {
		return false, fmt.Sprintf("file is empty: %s", relPath)
	}
	return true, ""
}

func checkFileContains(workDir, relPath, text string) (bool, string) {
	content, err := os.ReadFile(filepath.Join(workDir, relPath))
	if err != nil {
		return false, fmt.Sprintf("file not found: %s", relPath)
	}
	if !strings.Contains(string(content), text) {
		return false, fmt.Sprintf("file %s missing expected text: %q", relPath, text)
	}
	return true, ""
}

func checkFileMatches(workDir, relPath, pattern string, mustMatch bool) (bool, string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid pattern %q: %v", pattern, err)
	}

	content, err := os.ReadFile(filepath.Join(workDir, relPath))
	if err != nil {
		return false, fmt.Sprintf("file not found: %s", relPath)
	}

	matched := re.Match(content)
	if mustMatch && !matched {
		return false, fmt.Sprintf("file %s missing expected pattern: %s", relPath, pattern)
	}
	if !mustMatch && matched {
		return false, fmt.Sprintf("file %s contains forbidden pattern: %s", relPath, pattern)
	}
	return true, ""
}

// checkCommand runs the literal command string through the shell in workDir.
// Non-zero exit and spawn failure are both failures, not errors.
func (e *Engine) checkCommand(ctx context.Context, workDir, command string) (bool, string) {
	if strings.TrimSpace(command) == "" {
		return false, "empty command"
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	//nolint:gosec // commands are authored in the scenario definitions, not untrusted input
	cmd := exec.CommandContext(timeoutCtx, "sh", "-c", command)
	cmd.Dir = workDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := fmt.Sprintf("command failed: %v", err)
		if trimmed := strings.TrimSpace(string(output)); trimmed != "" {
			msg = fmt.Sprintf("%s; output: %s", msg, truncate(trimmed, 500))
		}
		return false, msg
	}
	return true, ""
}

// checkToolCalled scans the tool-server call log for at least one invocation
// of the named tool whose arguments satisfy the rule's expectations. Literal
// expectations require exact string equality; pattern expectations match as
// regex. An empty or missing log always fails.
func checkToolCalled(workDir string, rule models.ValidationRule) (bool, string) {
	calls, err := toolserver.ReadLog(toolserver.LogPath(workDir))
	if err != nil {
		return false, fmt.Sprintf("reading tool-call log: %v", err)
	}
	if len(calls) == 0 {
		return false, fmt.Sprintf("tool %s was never called (no tool calls logged)", rule.Tool)
	}

	for _, call := range calls {
		if call.Tool != rule.Tool {
			continue
		}
		if argsSatisfied(call.Args, rule.Args, rule.ArgsMatch) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("no call to %s matched the expected arguments", rule.Tool)
}

func argsSatisfied(got map[string]any, literal, patterns map[string]string) bool {
	for key, want := range literal {
		val, ok := got[key]
		if !ok || argString(val) != want {
			return false
		}
	}
	for key, pattern := range patterns {
		val, ok := got[key]
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		if !re.MatchString(argString(val)) {
			return false
		}
	}
	return true
}

// argString renders a logged argument value for comparison. Arguments are
// JSON values; scalars compare as their natural string form.
func argString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// DecodeParams decodes a custom rule's params map into a typed struct, for
// hook implementations that want typed access.
func DecodeParams(params map[string]any, out any) error {
	return mapstructure.Decode(params, out)
}

func (e *Engine) checkCustom(ctx context.Context, workDir string, rule models.ValidationRule) (bool, string) {
	fn, ok := e.hooks[rule.Hook]
	if !ok {
		return false, fmt.Sprintf("no custom validator registered for %q", rule.Hook)
	}
	passed, msg, err := fn(ctx, workDir, rule.Params)
	if err != nil {
		return false, fmt.Sprintf("custom validator %s: %v", rule.Hook, err)
	}
	return passed, msg
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
