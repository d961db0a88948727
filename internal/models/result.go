package models

// Status represents the outcome status of a test pair run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// ValidationOutcome records one rule's pass/fail result for one turn.
type ValidationOutcome struct {
	Turn    int      `json:"turn"`
	Kind    RuleKind `json:"kind"`
	Label   string   `json:"label"`
	Passed  bool     `json:"passed"`
	Message string   `json:"message,omitempty"`
}

// KeyInputs holds the five independently-hashed components of a cache key.
// They are stored alongside every cache entry so stale entries can be
// audited without recomputing hashes.
type KeyInputs struct {
	ScenarioHash     string `json:"scenario_hash"`
	ModelKey         string `json:"model_key"`
	RunnerConfigHash string `json:"runner_config_hash"`
	RunnerBinaryHash string `json:"runner_binary_hash"`
	ToolServerHash   string `json:"tool_server_hash"`
}

// RunResult is the sole artifact handed to the reporting layer: the outcome
// of one test pair, produced either fresh or from cache.
type RunResult struct {
	PairID   string `json:"pair_id"`
	Scenario string `json:"scenario"`
	Model    string `json:"model"`
	Runner   string `json:"runner"`

	Status      Status              `json:"status"`
	Validations []ValidationOutcome `json:"validations"`
	DurationMs  int64               `json:"duration_ms"`

	// ToolCalls counts tool-server log lines plus backend-native tool-call
	// markers found in the transcript.
	ToolCalls int `json:"tool_calls"`
	// Turns is an explicit per-backend marker count when available, else a
	// heuristic estimate. Approximate; not used for pass/fail.
	Turns int `json:"turns"`

	Errors         []string `json:"errors,omitempty"`
	TranscriptPath string   `json:"transcript_path,omitempty"`
	Cached         bool     `json:"cached"`
	// Attempt is the 1-based index of the trial this result came from.
	Attempt int `json:"attempt"`
}

// PassedValidations counts individually-passed rules across all turns.
func (r *RunResult) PassedValidations() int {
	n := 0
	for _, v := range r.Validations {
		if v.Passed {
			n++
		}
	}
	return n
}

// AllValidationsPassed reports whether every recorded rule passed.
func (r *RunResult) AllValidationsPassed() bool {
	for _, v := range r.Validations {
		if !v.Passed {
			return false
		}
	}
	return true
}

// HasFatalError reports whether the run captured an error beyond ordinary
// validation failures (process failure, timeout, config-write failure).
func (r *RunResult) HasFatalError() bool {
	return len(r.Errors) > 0
}
