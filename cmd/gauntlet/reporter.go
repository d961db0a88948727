package main

import (
	"fmt"
	"time"

	"github.com/wesamahakem/gauntlet/internal/models"
	"github.com/wesamahakem/gauntlet/internal/orchestration"
)

// newProgressPrinter returns a progress listener that prints one line per
// pair, or a multi-line trace when verbose is set.
func newProgressPrinter(verbose bool) orchestration.ProgressListener {
	if verbose {
		return verboseProgressListener
	}
	return simpleProgressListener
}

func verboseProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventMatrixStart:
		fmt.Printf("Running %d pair(s)...\n\n", event.TotalPairs)
	case orchestration.EventPairStart:
		fmt.Printf("[%d/%d] Running pair: %s\n", event.PairNum, event.TotalPairs, event.PairID)
	case orchestration.EventPairCached:
		fmt.Printf("[%d/%d] Pair: %s [cached]\n\n", event.PairNum, event.TotalPairs, event.PairID)
	case orchestration.EventPairComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("  Pair %s: %s (%v)\n", event.PairID, event.Status, duration)
		if tc, ok := event.Details["tool_calls"].(int); ok && tc > 0 {
			fmt.Printf("  [TOOLS] %d tool call(s)\n", tc)
		}
		if turns, ok := event.Details["turns"].(int); ok && turns > 0 {
			fmt.Printf("  [TURNS] %d turn(s)\n", turns)
		}
		fmt.Println()
	case orchestration.EventMatrixComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("Matrix completed in %v\n\n", duration)
	}
}

func simpleProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventPairCached:
		fmt.Printf("✓ [%d/%d] %s [cached]\n", event.PairNum, event.TotalPairs, event.PairID)
	case orchestration.EventPairComplete:
		status := "✓"
		if event.Status != models.StatusPassed {
			status = "✗"
		}
		fmt.Printf("%s [%d/%d] %s\n", status, event.PairNum, event.TotalPairs, event.PairID)
	}
}
