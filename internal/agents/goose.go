package agents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wesamahakem/gauntlet/internal/toolserver"
)

// platformExtensions is the static allow-list of capability names that goose
// ships as platform-level extensions. Anything else declared on a runner is
// registered as a builtin.
var platformExtensions = map[string]bool{
	"todo":              true,
	"apps":              true,
	"chatrecall":        true,
	"extension_manager": true,
	"summon":            true,
}

// GooseAgent drives the goose CLI. Configuration lives under an isolated
// XDG_CONFIG_HOME so the user's real ~/.config/goose is never read or
// written. Sessions are name-addressed: --name on every turn, --resume on
// turns after the first, --no-session for ephemeral runs.
type GooseAgent struct{}

type gooseExtension struct {
	Enabled bool              `yaml:"enabled"`
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type"`
	Cmd     string            `yaml:"cmd,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Envs    map[string]string `yaml:"envs,omitempty"`
	Timeout int               `yaml:"timeout,omitempty"`
}

func (a *GooseAgent) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	inv := &invocation{}

	root, err := configRoot(req.WorkDir, req.Runner.Kind)
	if err != nil {
		inv.to(stateFailed)
		return nil, err
	}
	if err := writeGooseConfig(root, req); err != nil {
		inv.to(stateFailed)
		return nil, err
	}
	inv.to(stateConfigWritten)

	env := []string{
		"XDG_CONFIG_HOME=" + root,
		toolserver.LogEnvVar + "=" + toolserver.LogPath(req.WorkDir),
	}

	out, err := inv.execute(ctx, req.WorkDir, req.Runner.Binary, gooseArgs(req), env)
	result := &TurnResult{Transcript: out, SessionID: req.SessionID}
	if err != nil {
		return result, err
	}
	return result, nil
}

func gooseArgs(req TurnRequest) []string {
	args := []string{"run", "--text", req.Prompt}
	if req.SessionID == "" {
		return append(args, "--no-session")
	}
	args = append(args, "--name", req.SessionID)
	if req.Resume {
		args = append(args, "--resume")
	}
	return args
}

// writeGooseConfig materializes <root>/goose/config.yaml with the provider
// selection and the extension table.
func writeGooseConfig(root string, req TurnRequest) error {
	config := map[string]any{
		"GOOSE_PROVIDER": req.Model.Provider,
		"GOOSE_MODEL":    req.Model.Model,
	}
	if req.Model.BaseURL != "" {
		// Endpoint override for local-inference providers, keyed the way
		// goose reads host settings (OLLAMA_HOST, OPENAI_HOST, ...).
		config[strings.ToUpper(req.Model.Provider)+"_HOST"] = req.Model.BaseURL
	}

	extensions := map[string]gooseExtension{}
	for _, name := range req.Runner.Extensions {
		kind := "builtin"
		if platformExtensions[name] {
			kind = "platform"
		}
		extensions[name] = gooseExtension{
			Enabled: true,
			Name:    name,
			Type:    kind,
		}
	}
	for _, command := range req.Runner.ToolServers {
		bin, cmdArgs := splitCommand(command)
		if bin == "" {
			continue
		}
		name := serverName(command)
		extensions[name] = gooseExtension{
			Enabled: true,
			Name:    name,
			Type:    "stdio",
			Cmd:     bin,
			Args:    cmdArgs,
			Envs: map[string]string{
				toolserver.LogEnvVar: toolserver.LogPath(req.WorkDir),
			},
			Timeout: 300,
		}
	}
	if len(extensions) > 0 {
		config["extensions"] = extensions
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("encoding goose config: %w", err)
	}

	dir := filepath.Join(root, "goose")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating goose config dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644); err != nil {
		return fmt.Errorf("writing goose config: %w", err)
	}
	return nil
}
