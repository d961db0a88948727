// Package matrix expands the declarative test matrix into the ordered list
// of executable test pairs.
package matrix

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wesamahakem/gauntlet/internal/models"
)

// Expand produces every test pair to execute. With matrix entries present,
// each entry contributes the Cartesian product of its (restricted or full)
// models × runners for its scenario, preserving entry order. Without
// entries, the full scenarios × models × runners product is produced,
// scenario-major.
//
// Unknown scenario/model/runner names are fatal: a typo'd matrix must never
// silently run a smaller suite.
//
// The result is stable-sorted by model name so executions against the same
// model are contiguous. Backends that keep a model loaded benefit from the
// locality; it is a scheduling hint, not a correctness requirement.
func Expand(
	scenarios []*models.Scenario,
	modelSpecs []models.ModelSpec,
	runners []models.RunnerSpec,
	entries []models.MatrixSelection,
) ([]models.TestPair, error) {
	scenarioByName := make(map[string]*models.Scenario, len(scenarios))
	for _, s := range scenarios {
		scenarioByName[s.Name] = s
	}
	modelByName := make(map[string]models.ModelSpec, len(modelSpecs))
	for _, m := range modelSpecs {
		modelByName[m.Name] = m
	}
	runnerByName := make(map[string]models.RunnerSpec, len(runners))
	for _, r := range runners {
		runnerByName[r.Name] = r
	}

	var pairs []models.TestPair

	if len(entries) == 0 {
		for _, s := range scenarios {
			pairs = append(pairs, crossProduct(s, modelSpecs, runners)...)
		}
	} else {
		for _, entry := range entries {
			scenario, ok := scenarioByName[entry.Scenario]
			if !ok {
				return nil, fmt.Errorf("matrix references unknown scenario %q", entry.Scenario)
			}

			entryModels, err := resolveModels(entry.Models, modelByName, modelSpecs)
			if err != nil {
				return nil, fmt.Errorf("matrix entry %q: %w", entry.Scenario, err)
			}
			entryRunners, err := resolveRunners(entry.Runners, runnerByName, runners)
			if err != nil {
				return nil, fmt.Errorf("matrix entry %q: %w", entry.Scenario, err)
			}

			pairs = append(pairs, crossProduct(scenario, entryModels, entryRunners)...)
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Model.Name < pairs[j].Model.Name
	})

	return pairs, nil
}

func crossProduct(s *models.Scenario, ms []models.ModelSpec, rs []models.RunnerSpec) []models.TestPair {
	pairs := make([]models.TestPair, 0, len(ms)*len(rs))
	for _, m := range ms {
		for _, r := range rs {
			pairs = append(pairs, models.TestPair{Scenario: s, Model: m, Runner: r})
		}
	}
	return pairs
}

func resolveModels(names []string, byName map[string]models.ModelSpec, all []models.ModelSpec) ([]models.ModelSpec, error) {
	if len(names) == 0 {
		return all, nil
	}
	resolved := make([]models.ModelSpec, 0, len(names))
	for _, name := range names {
		m, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown model %q", name)
		}
		resolved = append(resolved, m)
	}
	return resolved, nil
}

func resolveRunners(names []string, byName map[string]models.RunnerSpec, all []models.RunnerSpec) ([]models.RunnerSpec, error) {
	if len(names) == 0 {
		return all, nil
	}
	resolved := make([]models.RunnerSpec, 0, len(names))
	for _, name := range names {
		r, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown runner %q", name)
		}
		resolved = append(resolved, r)
	}
	return resolved, nil
}

// Filter returns the subset of pairs whose scenario, model, and runner names
// each match the corresponding filter list. Each list is a set of substrings
// matched case-sensitively; an empty list matches everything.
func Filter(pairs []models.TestPair, scenarioFilters, modelFilters, runnerFilters []string) []models.TestPair {
	var matched []models.TestPair
	for _, p := range pairs {
		if matchesAny(p.Scenario.Name, scenarioFilters) &&
			matchesAny(p.Model.Name, modelFilters) &&
			matchesAny(p.Runner.Name, runnerFilters) {
			matched = append(matched, p)
		}
	}
	return matched
}

func matchesAny(name string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f != "" && strings.Contains(name, f) {
			return true
		}
	}
	return false
}
