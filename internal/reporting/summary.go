// Package reporting renders run results for humans and CI: a fixed-width
// terminal summary, a JSON results file, and JUnit XML.
package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/wesamahakem/gauntlet/internal/models"
)

// Summary aggregates a finished run.
type Summary struct {
	RunID      string             `json:"run_id,omitempty"`
	SuiteName  string             `json:"suite_name,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Total      int                `json:"total"`
	Passed     int                `json:"passed"`
	Failed     int                `json:"failed"`
	CacheHits  int                `json:"cache_hits"`
	DurationMs int64              `json:"duration_ms"`
	Results    []models.RunResult `json:"results"`
}

// Summarize builds a Summary from per-pair results.
func Summarize(suiteName string, results []models.RunResult, started time.Time) *Summary {
	s := &Summary{
		SuiteName: suiteName,
		Timestamp: started,
		Total:     len(results),
		Results:   results,
	}
	for _, r := range results {
		switch r.Status {
		case models.StatusPassed:
			s.Passed++
		default:
			s.Failed++
		}
		if r.Cached {
			s.CacheHits++
		}
		s.DurationMs += r.DurationMs
	}
	return s
}

// WriteTable renders the summary as a fixed-width table.
func (s *Summary) WriteTable(w io.Writer) {
	const (
		scenarioWidth = 24
		modelWidth    = 16
		runnerWidth   = 16
		statusWidth   = 8
	)

	header := padRight("SCENARIO", scenarioWidth) +
		padRight("MODEL", modelWidth) +
		padRight("RUNNER", runnerWidth) +
		padRight("STATUS", statusWidth) +
		padRight("RULES", 8) +
		padRight("CALLS", 7) +
		"TIME"
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("─", runewidth.StringWidth(header)))

	for _, r := range s.Results {
		status := strings.ToUpper(string(r.Status))
		if r.Cached {
			status += "*"
		}
		fmt.Fprintln(w,
			padRight(truncateCell(r.Scenario, scenarioWidth-2), scenarioWidth)+
				padRight(truncateCell(r.Model, modelWidth-2), modelWidth)+
				padRight(truncateCell(r.Runner, runnerWidth-2), runnerWidth)+
				padRight(status, statusWidth)+
				padRight(fmt.Sprintf("%d/%d", r.PassedValidations(), len(r.Validations)), 8)+
				padRight(fmt.Sprintf("%d", r.ToolCalls), 7)+
				formatDuration(r.DurationMs))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d/%d passed", s.Passed, s.Total)
	if s.CacheHits > 0 {
		fmt.Fprintf(w, " (%d from cache)", s.CacheHits)
	}
	fmt.Fprintf(w, " in %s\n", formatDuration(s.DurationMs))
}

// WriteJSON writes the summary to path as indented JSON.
func (s *Summary) WriteJSON(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func truncateCell(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000.0)
}
