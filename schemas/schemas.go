// Package schemas holds the embedded JSON Schemas for gauntlet's YAML
// configuration files.
package schemas

import _ "embed"

// SuiteSchemaJSON is the JSON Schema for suite.yaml files.
//
//go:embed suite.schema.json
var SuiteSchemaJSON string

// ScenarioSchemaJSON is the JSON Schema for scenario YAML files.
//
//go:embed scenario.schema.json
var ScenarioSchemaJSON string
