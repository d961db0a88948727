package agents

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wesamahakem/gauntlet/internal/toolserver"
)

// CodexAgent drives the codex CLI. Provider and model are passed as flags,
// configuration lives under an isolated CODEX_HOME, and sessions are
// addressed by recorded rollout file path rather than by name: after a
// fresh turn the newest rollout file under CODEX_HOME/sessions becomes the
// session identifier for subsequent turns.
//
// The user's real auth.json is copied into the isolated home when present,
// so credentials keep working without exposing the rest of the user's codex
// configuration to the run.
type CodexAgent struct{}

func (a *CodexAgent) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	inv := &invocation{}

	home, err := configRoot(req.WorkDir, req.Runner.Kind)
	if err != nil {
		inv.to(stateFailed)
		return nil, err
	}
	if err := writeCodexConfig(home, req); err != nil {
		inv.to(stateFailed)
		return nil, err
	}
	if err := writeCodexProjectConfig(req.WorkDir, req); err != nil {
		inv.to(stateFailed)
		return nil, err
	}
	copyCodexAuth(home)
	inv.to(stateConfigWritten)

	env := []string{
		"CODEX_HOME=" + home,
		toolserver.LogEnvVar + "=" + toolserver.LogPath(req.WorkDir),
	}

	out, err := inv.execute(ctx, req.WorkDir, req.Runner.Binary, codexArgs(req), env)
	result := &TurnResult{Transcript: out, SessionID: req.SessionID}
	if err != nil {
		return result, err
	}

	if req.SessionID == "" || !req.Resume {
		if path := newestSessionFile(home); path != "" {
			result.SessionID = path
		}
	}
	return result, nil
}

func codexArgs(req TurnRequest) []string {
	if req.Resume && req.SessionID != "" {
		return []string{"exec", "resume", req.SessionID, req.Prompt}
	}
	args := []string{"exec", "--model", req.Model.Model}
	if req.Model.BaseURL != "" {
		args = append(args, "-c", "model_provider="+req.Model.Provider)
	}
	return append(args, req.Prompt)
}

// writeCodexConfig materializes <home>/config.toml. Models served from a
// custom endpoint get a model_providers table entry so codex can reach them.
func writeCodexConfig(home string, req TurnRequest) error {
	var b strings.Builder
	fmt.Fprintf(&b, "model = %q\n", req.Model.Model)
	if req.Model.BaseURL != "" {
		fmt.Fprintf(&b, "model_provider = %q\n", req.Model.Provider)
		fmt.Fprintf(&b, "\n[model_providers.%s]\n", req.Model.Provider)
		fmt.Fprintf(&b, "name = %q\n", req.Model.Provider)
		fmt.Fprintf(&b, "base_url = %q\n", req.Model.BaseURL)
		fmt.Fprintf(&b, "wire_api = %q\n", "chat")
	}

	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing codex config: %w", err)
	}
	return nil
}

// writeCodexProjectConfig wires tool servers through the project-local
// configuration codex discovers at .codex/config.toml under the working
// directory. Tool-name prefixing is disabled so validation rules can match
// tool names as the server declares them.
func writeCodexProjectConfig(workDir string, req TurnRequest) error {
	if len(req.Runner.ToolServers) == 0 {
		return nil
	}

	var b strings.Builder
	for _, command := range req.Runner.ToolServers {
		bin, cmdArgs := splitCommand(command)
		if bin == "" {
			continue
		}
		fmt.Fprintf(&b, "[mcp_servers.%s]\n", serverName(command))
		fmt.Fprintf(&b, "command = %q\n", bin)
		b.WriteString("args = [")
		for i, arg := range cmdArgs {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q", arg)
		}
		b.WriteString("]\n")
		b.WriteString("prefix_tools = false\n")
		fmt.Fprintf(&b, "\n[mcp_servers.%s.env]\n", serverName(command))
		fmt.Fprintf(&b, "%s = %q\n\n", toolserver.LogEnvVar, toolserver.LogPath(workDir))
	}

	dir := filepath.Join(workDir, ".codex")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating project codex dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing project codex config: %w", err)
	}
	return nil
}

// copyCodexAuth best-effort copies the user's auth.json into the isolated
// home. Missing auth is not an error: some providers need no credentials.
func copyCodexAuth(home string) {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return
	}
	data, err := os.ReadFile(filepath.Join(userHome, ".codex", "auth.json"))
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(home, "auth.json"), data, 0o600)
}

// newestSessionFile returns the most recently modified rollout file under
// <home>/sessions, or "" when none exists.
func newestSessionFile(home string) string {
	root := filepath.Join(home, "sessions")

	var newest string
	var newestMod int64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".jsonl") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = path, mod
		}
		return nil
	})
	return newest
}
