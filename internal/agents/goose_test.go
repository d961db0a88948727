package agents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wesamahakem/gauntlet/internal/models"
	"github.com/wesamahakem/gauntlet/internal/toolserver"
)

func gooseRequest(workDir string) TurnRequest {
	return TurnRequest{
		Model: models.ModelSpec{Name: "gpt-4o", Provider: "openai", Model: "gpt-4o"},
		Runner: models.RunnerSpec{
			Name:        "goose-main",
			Kind:        models.RunnerGoose,
			Binary:      "goose",
			Extensions:  []string{"todo", "developer", "extension_manager"},
			ToolServers: []string{"python3 /opt/tools/weather_server.py"},
		},
		Prompt:  "write a joke",
		WorkDir: workDir,
	}
}

func TestGooseArgs(t *testing.T) {
	t.Run("ephemeral", func(t *testing.T) {
		req := gooseRequest(t.TempDir())
		require.Equal(t,
			[]string{"run", "--text", "write a joke", "--no-session"},
			gooseArgs(req))
	})

	t.Run("first named turn", func(t *testing.T) {
		req := gooseRequest(t.TempDir())
		req.SessionID = "pair-123"
		require.Equal(t,
			[]string{"run", "--text", "write a joke", "--name", "pair-123"},
			gooseArgs(req))
	})

	t.Run("resumed turn", func(t *testing.T) {
		req := gooseRequest(t.TempDir())
		req.SessionID = "pair-123"
		req.Resume = true
		require.Equal(t,
			[]string{"run", "--text", "write a joke", "--name", "pair-123", "--resume"},
			gooseArgs(req))
	})
}

func TestWriteGooseConfig(t *testing.T) {
	workDir := t.TempDir()
	req := gooseRequest(workDir)

	root, err := configRoot(workDir, models.RunnerGoose)
	require.NoError(t, err)
	require.NoError(t, writeGooseConfig(root, req))

	data, err := os.ReadFile(filepath.Join(root, "goose", "config.yaml"))
	require.NoError(t, err)

	var config struct {
		Provider   string                    `yaml:"GOOSE_PROVIDER"`
		Model      string                    `yaml:"GOOSE_MODEL"`
		Extensions map[string]gooseExtension `yaml:"extensions"`
	}
	require.NoError(t, yaml.Unmarshal(data, &config))

	require.Equal(t, "openai", config.Provider)
	require.Equal(t, "gpt-4o", config.Model)

	// Allow-listed names register as platform, everything else as builtin.
	require.Equal(t, "platform", config.Extensions["todo"].Type)
	require.Equal(t, "platform", config.Extensions["extension_manager"].Type)
	require.Equal(t, "builtin", config.Extensions["developer"].Type)

	server := config.Extensions["weather_server"]
	require.Equal(t, "stdio", server.Type)
	require.Equal(t, "python3", server.Cmd)
	require.Equal(t, []string{"/opt/tools/weather_server.py"}, server.Args)
	require.Equal(t, toolserver.LogPath(workDir), server.Envs[toolserver.LogEnvVar])
}

func TestWriteGooseConfigBaseURL(t *testing.T) {
	workDir := t.TempDir()
	req := gooseRequest(workDir)
	req.Model = models.ModelSpec{
		Name: "local-llama", Provider: "ollama", Model: "llama3",
		BaseURL: "http://localhost:11434",
	}

	root, err := configRoot(workDir, models.RunnerGoose)
	require.NoError(t, err)
	require.NoError(t, writeGooseConfig(root, req))

	data, err := os.ReadFile(filepath.Join(root, "goose", "config.yaml"))
	require.NoError(t, err)

	var config map[string]any
	require.NoError(t, yaml.Unmarshal(data, &config))
	require.Equal(t, "http://localhost:11434", config["OLLAMA_HOST"])
}
