// Package config loads and validates gauntlet suite files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wesamahakem/gauntlet/internal/hooks"
	"github.com/wesamahakem/gauntlet/internal/models"
)

// Defaults holds per-suite execution defaults, all overridable from the CLI.
type Defaults struct {
	Repeat         int    `yaml:"repeat,omitempty" json:"repeat,omitempty"`
	CacheDir       string `yaml:"cache_dir,omitempty" json:"cache_dir,omitempty"`
	WorkDir        string `yaml:"work_dir,omitempty" json:"work_dir,omitempty"`
	TurnTimeoutSec int    `yaml:"turn_timeout_sec,omitempty" json:"turn_timeout_sec,omitempty"`
}

// Suite is the top-level configuration: the models and runners under test,
// the scenarios to run them through, and the optional matrix restricting the
// cross-product.
type Suite struct {
	Name    string              `yaml:"name,omitempty" json:"name,omitempty"`
	Models  []models.ModelSpec  `yaml:"models" json:"models"`
	Runners []models.RunnerSpec `yaml:"runners" json:"runners"`

	// Scenarios declared inline in the suite file.
	Scenarios []*models.Scenario `yaml:"scenarios,omitempty" json:"scenarios,omitempty"`
	// ScenarioFiles are glob patterns, resolved relative to the suite file,
	// naming one-scenario-per-file YAML documents.
	ScenarioFiles []string `yaml:"scenario_files,omitempty" json:"scenario_files,omitempty"`

	Matrix   []models.MatrixSelection `yaml:"matrix,omitempty" json:"matrix,omitempty"`
	Hooks    hooks.Config             `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	Defaults Defaults                 `yaml:"defaults,omitempty" json:"defaults,omitempty"`

	// dir is the suite file's directory, kept for relative path resolution.
	dir string
}

// Dir returns the directory containing the suite file.
func (s *Suite) Dir() string {
	return s.dir
}

// Load reads, schema-validates, and decodes a suite file, then loads any
// referenced scenario files and checks cross-references.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file: %w", err)
	}

	if errs := ValidateSuiteBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("suite file %s is invalid:\n  %s", path, strings.Join(errs, "\n  "))
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parsing suite file: %w", err)
	}
	suite.dir = filepath.Dir(path)

	if err := suite.loadScenarioFiles(); err != nil {
		return nil, err
	}
	if err := suite.check(); err != nil {
		return nil, err
	}
	return &suite, nil
}

func (s *Suite) loadScenarioFiles() error {
	for _, pattern := range s.ScenarioFiles {
		fullPattern := pattern
		if !filepath.IsAbs(fullPattern) {
			fullPattern = filepath.Join(s.dir, pattern)
		}
		matches, err := filepath.Glob(fullPattern)
		if err != nil {
			return fmt.Errorf("scenario glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("scenario glob %q matched no files", pattern)
		}
		for _, file := range matches {
			scenario, err := LoadScenario(file)
			if err != nil {
				return err
			}
			s.Scenarios = append(s.Scenarios, scenario)
		}
	}
	return nil
}

// LoadScenario reads, schema-validates, and decodes one scenario file.
func LoadScenario(path string) (*models.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	if errs := ValidateScenarioBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("scenario file %s is invalid:\n  %s", path, strings.Join(errs, "\n  "))
	}

	var scenario models.Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parsing scenario file %s: %w", path, err)
	}
	if err := scenario.CheckValid(); err != nil {
		return nil, fmt.Errorf("scenario file %s: %w", path, err)
	}
	return &scenario, nil
}

// check verifies the structural invariants the schema cannot express:
// scenario semantics, runner kinds, and name uniqueness.
func (s *Suite) check() error {
	if len(s.Scenarios) == 0 {
		return fmt.Errorf("suite declares no scenarios")
	}

	seenScenarios := map[string]bool{}
	for _, scenario := range s.Scenarios {
		if err := scenario.CheckValid(); err != nil {
			return err
		}
		if seenScenarios[scenario.Name] {
			return fmt.Errorf("duplicate scenario name %q", scenario.Name)
		}
		seenScenarios[scenario.Name] = true
	}

	seenModels := map[string]bool{}
	for _, m := range s.Models {
		if seenModels[m.Name] {
			return fmt.Errorf("duplicate model name %q", m.Name)
		}
		seenModels[m.Name] = true
	}

	seenRunners := map[string]bool{}
	for _, r := range s.Runners {
		if err := r.Validate(); err != nil {
			return err
		}
		if seenRunners[r.Name] {
			return fmt.Errorf("duplicate runner name %q", r.Name)
		}
		seenRunners[r.Name] = true
	}

	return nil
}
