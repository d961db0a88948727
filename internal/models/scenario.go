package models

import (
	"fmt"
)

// RuleKind identifies the type of a validation rule.
type RuleKind string

const (
	RuleFileExists      RuleKind = "file_exists"
	RuleFileNotEmpty    RuleKind = "file_not_empty"
	RuleFileContains    RuleKind = "file_contains"
	RuleFileMatches     RuleKind = "file_matches"
	RuleFileNotMatches  RuleKind = "file_not_matches"
	RuleCommandSucceeds RuleKind = "command_succeeds"
	RuleToolCalled      RuleKind = "tool_called"
	RuleCustom          RuleKind = "custom"
)

// ValidationRule is a declarative assertion checked against workspace state
// or the tool-call log after a turn. Only the fields relevant to Kind are
// populated.
type ValidationRule struct {
	Kind RuleKind `yaml:"type" json:"type"`

	// Path is relative to the working directory (file_* kinds).
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Text is the literal substring for file_contains.
	Text string `yaml:"text,omitempty" json:"text,omitempty"`
	// Pattern is the regex for file_matches / file_not_matches.
	Pattern string `yaml:"regex,omitempty" json:"regex,omitempty"`
	// Command is the shell command for command_succeeds, run in the
	// working directory.
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Tool names the tool for tool_called.
	Tool string `yaml:"tool,omitempty" json:"tool,omitempty"`
	// Args are expected argument values matched per-key with exact string
	// equality against the tool-call log.
	Args map[string]string `yaml:"args,omitempty" json:"args,omitempty"`
	// ArgsMatch are expected argument values matched per-key as regex
	// patterns. A key may appear in Args or ArgsMatch, not both.
	ArgsMatch map[string]string `yaml:"args_match,omitempty" json:"args_match,omitempty"`

	// Hook names a registered custom validator for RuleCustom, with Params
	// passed through to it.
	Hook   string         `yaml:"hook,omitempty" json:"hook,omitempty"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	// Label overrides the derived human-readable description.
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// DefaultLabel derives a human-readable description from the rule's kind and
// its relevant path or tool name. Used when no explicit label is set.
func (r ValidationRule) DefaultLabel() string {
	if r.Label != "" {
		return r.Label
	}
	switch r.Kind {
	case RuleFileExists:
		return fmt.Sprintf("file %s exists", r.Path)
	case RuleFileNotEmpty:
		return fmt.Sprintf("file %s is not empty", r.Path)
	case RuleFileContains:
		return fmt.Sprintf("file %s contains %q", r.Path, r.Text)
	case RuleFileMatches:
		return fmt.Sprintf("file %s matches /%s/", r.Path, r.Pattern)
	case RuleFileNotMatches:
		return fmt.Sprintf("file %s does not match /%s/", r.Path, r.Pattern)
	case RuleCommandSucceeds:
		return fmt.Sprintf("command succeeds: %s", r.Command)
	case RuleToolCalled:
		return fmt.Sprintf("tool %s was called", r.Tool)
	case RuleCustom:
		return fmt.Sprintf("custom check %s", r.Hook)
	default:
		return string(r.Kind)
	}
}

// Turn is one request/response exchange within a scenario: a prompt plus the
// validation rules that gate continuation to the next turn.
type Turn struct {
	Prompt   string           `yaml:"prompt" json:"prompt"`
	Validate []ValidationRule `yaml:"validate,omitempty" json:"validate,omitempty"`
}

// Scenario is one test definition. Exactly one of Prompt or Turns is
// authoritative; a single-turn sequence is synthesized from Prompt/Validate
// when Turns is absent. Scenarios are loaded once per process run and
// immutable afterward.
type Scenario struct {
	Name   string `yaml:"name" json:"name"`
	Prompt string `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Turns  []Turn `yaml:"turns,omitempty" json:"turns,omitempty"`
	// Validate holds the rules for the synthesized single turn when Turns
	// is absent.
	Validate []ValidationRule `yaml:"validate,omitempty" json:"validate,omitempty"`
	// Setup maps relative paths to literal file contents materialized into
	// a clean working directory before the first turn.
	Setup map[string]string `yaml:"setup,omitempty" json:"setup,omitempty"`
	Tags  []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// TurnSequence returns the scenario's turns, synthesizing a single turn from
// Prompt/Validate when no explicit turns are declared.
func (s *Scenario) TurnSequence() []Turn {
	if len(s.Turns) > 0 {
		return s.Turns
	}
	return []Turn{{Prompt: s.Prompt, Validate: s.Validate}}
}

// CheckValid verifies the prompt/turns invariant.
func (s *Scenario) CheckValid() error {
	if s.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if s.Prompt == "" && len(s.Turns) == 0 {
		return fmt.Errorf("scenario %q: one of prompt or turns is required", s.Name)
	}
	if s.Prompt != "" && len(s.Turns) > 0 {
		return fmt.Errorf("scenario %q: prompt and turns are mutually exclusive", s.Name)
	}
	for i, t := range s.Turns {
		if t.Prompt == "" {
			return fmt.Errorf("scenario %q: turn %d has no prompt", s.Name, i+1)
		}
	}
	return nil
}

// HasTag reports whether the scenario carries the given tag.
func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
