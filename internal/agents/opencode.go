package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wesamahakem/gauntlet/internal/toolserver"
)

// OpenCodeAgent drives the opencode CLI. Its configuration file is
// project-local (opencode.json in the working directory), so hermeticity
// falls out of the per-pair workspace for free. The backend has no named
// sessions: continuation is only a "continue the most recent session in this
// directory" toggle, which limits it to scenarios of at most two turns when
// session identity matters. That limitation is documented on
// models.RunnerSpec.SupportsNamedSessions rather than enforced here.
type OpenCodeAgent struct{}

type opencodeConfig struct {
	Schema   string                       `json:"$schema"`
	Model    string                       `json:"model"`
	Provider map[string]opencodeProvider  `json:"provider,omitempty"`
	MCP      map[string]opencodeMCPServer `json:"mcp,omitempty"`
}

type opencodeProvider struct {
	NPM     string                    `json:"npm"`
	Options map[string]string         `json:"options"`
	Models  map[string]map[string]any `json:"models"`
}

type opencodeMCPServer struct {
	Type        string            `json:"type"`
	Command     []string          `json:"command"`
	Environment map[string]string `json:"environment,omitempty"`
	Enabled     bool              `json:"enabled"`
}

func (a *OpenCodeAgent) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	inv := &invocation{}

	if err := writeOpenCodeConfig(req.WorkDir, req); err != nil {
		inv.to(stateFailed)
		return nil, err
	}
	inv.to(stateConfigWritten)

	env := []string{
		toolserver.LogEnvVar + "=" + toolserver.LogPath(req.WorkDir),
	}

	out, err := inv.execute(ctx, req.WorkDir, req.Runner.Binary, opencodeArgs(req), env)
	result := &TurnResult{Transcript: out}
	if err != nil {
		return result, err
	}
	return result, nil
}

func opencodeArgs(req TurnRequest) []string {
	args := []string{"run", "--model", req.Model.Key()}
	if req.Resume {
		args = append(args, "--continue")
	}
	return append(args, req.Prompt)
}

// writeOpenCodeConfig materializes opencode.json in the working directory.
// Models served from a custom endpoint get a provider block synthesized
// inline; hosted providers resolve through opencode's built-in catalog.
func writeOpenCodeConfig(workDir string, req TurnRequest) error {
	config := opencodeConfig{
		Schema: "https://opencode.ai/config.json",
		Model:  req.Model.Key(),
	}

	if req.Model.BaseURL != "" {
		config.Provider = map[string]opencodeProvider{
			req.Model.Provider: {
				NPM:     "@ai-sdk/openai-compatible",
				Options: map[string]string{"baseURL": req.Model.BaseURL},
				Models:  map[string]map[string]any{req.Model.Model: {}},
			},
		}
	}

	if len(req.Runner.ToolServers) > 0 {
		config.MCP = map[string]opencodeMCPServer{}
		for _, command := range req.Runner.ToolServers {
			bin, cmdArgs := splitCommand(command)
			if bin == "" {
				continue
			}
			config.MCP[serverName(command)] = opencodeMCPServer{
				Type:    "local",
				Command: append([]string{bin}, cmdArgs...),
				Environment: map[string]string{
					toolserver.LogEnvVar: toolserver.LogPath(workDir),
				},
				Enabled: true,
			}
		}
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding opencode config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "opencode.json"), data, 0o644); err != nil {
		return fmt.Errorf("writing opencode config: %w", err)
	}
	return nil
}
