// Package agents drives external coding-agent CLIs. Each supported backend
// gets its own adapter that materializes hermetic configuration, wires in
// auxiliary tool servers, and invokes the binary with session flags matched
// to the backend's own session model.
package agents

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wesamahakem/gauntlet/internal/models"
)

// TurnRequest carries everything an adapter needs for one exchange.
type TurnRequest struct {
	Model  models.ModelSpec
	Runner models.RunnerSpec
	Prompt string
	// WorkDir is the pair's freshly-prepared working directory. Adapters
	// write per-run configuration under it (or an isolated root inside it),
	// never under the user's real configuration directory.
	WorkDir string
	// SessionID names the session for backends that support named sessions.
	// Empty means ephemeral: no session state is kept between invocations.
	SessionID string
	// Resume is set on every turn after the first.
	Resume bool
}

// TurnResult is the outcome of one completed turn.
type TurnResult struct {
	// Transcript is the combined stdout/stderr of the backend process. It is
	// populated on failure too, so partial output is never lost.
	Transcript string
	// SessionID is the identifier subsequent turns should resume with. For
	// name-addressed backends it echoes the request; for file-path-addressed
	// backends it is discovered after the run.
	SessionID string
}

// Agent is the shared contract over all backend adapters. Implementations do
// not time out on their own; the caller bounds each turn through ctx and the
// underlying process error propagates unmodified.
type Agent interface {
	RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)
}

// New returns the adapter for a runner kind.
func New(kind models.RunnerKind) (Agent, error) {
	switch kind {
	case models.RunnerGoose:
		return &GooseAgent{}, nil
	case models.RunnerOpenCode:
		return &OpenCodeAgent{}, nil
	case models.RunnerCodex:
		return &CodexAgent{}, nil
	default:
		return nil, fmt.Errorf("no agent adapter for runner kind %q", kind)
	}
}

// turnState tracks one invocation through its lifecycle. Every turn moves
// Idle -> ConfigWritten -> Invoked and ends in Completed or Failed.
type turnState int

const (
	stateIdle turnState = iota
	stateConfigWritten
	stateInvoked
	stateCompleted
	stateFailed
)

func (s turnState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConfigWritten:
		return "config-written"
	case stateInvoked:
		return "invoked"
	case stateCompleted:
		return "completed"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

type invocation struct {
	state turnState
}

func (inv *invocation) to(s turnState) {
	inv.state = s
}

// execute runs the backend binary and advances the state machine. The
// process's combined output is returned even when it exits abnormally.
func (inv *invocation) execute(ctx context.Context, workDir, binary string, args, extraEnv []string) (string, error) {
	inv.to(stateInvoked)

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), extraEnv...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		inv.to(stateFailed)
		return string(out), fmt.Errorf("%s: %w", filepath.Base(binary), err)
	}

	inv.to(stateCompleted)
	return string(out), nil
}

// configRoot returns (and creates) the isolated per-backend configuration
// directory for this run.
func configRoot(workDir string, kind models.RunnerKind) (string, error) {
	root := filepath.Join(workDir, ".gauntlet", string(kind))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating config root: %w", err)
	}
	return root, nil
}

// splitCommand tokenizes a tool-server launch command line.
func splitCommand(command string) (bin string, args []string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// serverName derives a tool server's registration name from the basename of
// the last path-like argument of its launch command, extension stripped.
// "python3 /opt/tools/weather_server.py --port 0" registers as
// "weather_server".
func serverName(command string) string {
	fields := strings.Fields(command)
	name := ""
	for _, f := range fields {
		if strings.ContainsAny(f, "/\\") || strings.Contains(f, ".") {
			name = f
		}
	}
	if name == "" && len(fields) > 0 {
		name = fields[0]
	}
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		return "toolserver"
	}
	return base
}
