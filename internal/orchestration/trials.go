package orchestration

import (
	"context"
	"math"

	"github.com/wesamahakem/gauntlet/internal/models"
)

// RunTrials runs a pair up to repeat times and keeps the single
// worst-scoring attempt. Repetition exists to catch flaky passes, not to
// average out deterministic failures, so the loop stops at the first failed
// attempt. Ties keep the earliest attempt.
func (o *Orchestrator) RunTrials(ctx context.Context, pair models.TestPair, repeat int) (models.RunResult, string) {
	if repeat < 1 {
		repeat = 1
	}

	var worst models.RunResult
	var worstTranscript string
	worstScore := 0

	for attempt := 1; attempt <= repeat; attempt++ {
		result, transcriptText := o.RunPair(ctx, pair, attempt)

		score := attemptScore(&result)
		if attempt == 1 || score < worstScore {
			worst, worstTranscript, worstScore = result, transcriptText, score
		}

		if result.Status == models.StatusFailed {
			break
		}
	}

	return worst, worstTranscript
}

// attemptScore imposes a total order over attempts: any pass outranks any
// failure, failures with a captured fatal error rank below everything, and
// within a band more passed rules rank higher.
func attemptScore(r *models.RunResult) int {
	if r.Status == models.StatusFailed && r.HasFatalError() {
		return math.MinInt
	}
	score := r.PassedValidations()
	if r.Status == models.StatusPassed {
		score += 1000
	}
	return score
}
