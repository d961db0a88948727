package models

import (
	"fmt"
	"strings"
)

// RunnerKind identifies which agent CLI a runner drives. The set is closed:
// each kind has its own adapter with its own configuration format and
// session semantics.
type RunnerKind string

const (
	RunnerGoose    RunnerKind = "goose"
	RunnerOpenCode RunnerKind = "opencode"
	RunnerCodex    RunnerKind = "codex"
)

// ParseRunnerKind converts a config string to a RunnerKind.
func ParseRunnerKind(s string) (RunnerKind, error) {
	switch RunnerKind(strings.ToLower(strings.TrimSpace(s))) {
	case RunnerGoose:
		return RunnerGoose, nil
	case RunnerOpenCode:
		return RunnerOpenCode, nil
	case RunnerCodex:
		return RunnerCodex, nil
	default:
		return "", fmt.Errorf("invalid runner kind %q: must be goose, opencode, or codex", s)
	}
}

// ModelSpec describes one model under test.
type ModelSpec struct {
	// Name is the local alias used in matrix entries and CLI filters.
	Name     string `yaml:"name" json:"name"`
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
	// BaseURL is set for local-inference providers that need an endpoint
	// synthesized into runner configuration (e.g. an OpenAI-compatible
	// server). Empty for hosted providers.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

// Key returns the provider/model identifier used verbatim as a cache key
// component.
func (m ModelSpec) Key() string {
	return m.Provider + "/" + m.Model
}

// RunnerSpec describes one agent backend installation.
type RunnerSpec struct {
	Name string     `yaml:"name" json:"name"`
	Kind RunnerKind `yaml:"kind" json:"kind"`
	// Binary is the path to the agent executable. Resolved through PATH
	// when not absolute.
	Binary string `yaml:"binary" json:"binary"`
	// Extensions lists backend-specific capability names to enable
	// (goose only; other kinds ignore it).
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	// ToolServers lists auxiliary tool-server launch commands to wire into
	// the backend's configuration. Each entry is a full command line.
	ToolServers []string `yaml:"tool_servers,omitempty" json:"tool_servers,omitempty"`
}

// SupportsNamedSessions reports whether the backend can address sessions by
// name across turns. opencode only has a "continue most recent session in
// this directory" toggle, so scenarios needing more than two turns addressed
// by name should not be matrixed against it. This is a documented limitation,
// not enforced at expansion time.
func (r RunnerSpec) SupportsNamedSessions() bool {
	return r.Kind != RunnerOpenCode
}

// Validate checks that the runner is well-formed.
func (r RunnerSpec) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("runner has no name")
	}
	if _, err := ParseRunnerKind(string(r.Kind)); err != nil {
		return fmt.Errorf("runner %q: %w", r.Name, err)
	}
	if r.Binary == "" {
		return fmt.Errorf("runner %q has no binary", r.Name)
	}
	return nil
}

// MatrixSelection restricts one scenario to subsets of models and runners.
// Empty Models/Runners mean "all".
type MatrixSelection struct {
	Scenario string   `yaml:"scenario" json:"scenario"`
	Models   []string `yaml:"models,omitempty" json:"models,omitempty"`
	Runners  []string `yaml:"runners,omitempty" json:"runners,omitempty"`
}

// TestPair is the atomic unit of execution and caching: one scenario against
// one model on one runner. Pairs are created by the matrix expander and never
// mutated afterward.
type TestPair struct {
	Scenario *Scenario
	Model    ModelSpec
	Runner   RunnerSpec
}

// ID returns a filesystem-safe identifier for the pair.
func (p TestPair) ID() string {
	return fmt.Sprintf("%s-%s-%s",
		sanitizeIDPart(p.Scenario.Name),
		sanitizeIDPart(p.Model.Name),
		sanitizeIDPart(p.Runner.Name))
}

func sanitizeIDPart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
