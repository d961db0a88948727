package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wesamahakem/gauntlet/internal/cache"
	"github.com/wesamahakem/gauntlet/internal/config"
	"github.com/wesamahakem/gauntlet/internal/matrix"
	"github.com/wesamahakem/gauntlet/internal/orchestration"
	"github.com/wesamahakem/gauntlet/internal/reporting"
	"github.com/wesamahakem/gauntlet/internal/validation"
)

var (
	scenarioFilter string
	modelFilter    string
	runnerFilter   string
	repeatCount    int
	noCache        bool
	runCacheDir    string
	workDir        string
	outputPath     string
	junitPath      string
	verbose        bool
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite.yaml>",
		Short: "Run a scenario suite across the model/runner matrix",
		Long: `Run a scenario suite across the model/runner matrix.

The suite file declares the models and agent backends under test, the
scenarios to run, and an optional matrix restricting which combinations
execute. Results are cached by content: a pair whose scenario, model,
runner configuration, and binaries are unchanged is served from cache.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVar(&scenarioFilter, "scenario", "", "Comma-separated scenario name substrings to run")
	cmd.Flags().StringVar(&modelFilter, "model", "", "Comma-separated model name substrings to run")
	cmd.Flags().StringVar(&runnerFilter, "runner", "", "Comma-separated runner name substrings to run")
	cmd.Flags().IntVar(&repeatCount, "repeat", 0, "Run each pair up to N times, keeping the worst attempt (default: suite setting or 1)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass cache lookups (results are still stored)")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", "", "Cache directory (default: suite setting or .gauntlet-cache)")
	cmd.Flags().StringVar(&workDir, "workdir", "", "Root for per-pair working directories (default: suite setting or a temp dir)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for results")
	cmd.Flags().StringVar(&junitPath, "junit", "", "Output JUnit XML file for CI")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose progress output")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	started := time.Now()

	suite, err := config.Load(args[0])
	if err != nil {
		return err
	}

	pairs, err := matrix.Expand(suite.Scenarios, suite.Models, suite.Runners, suite.Matrix)
	if err != nil {
		return err
	}
	pairs = matrix.Filter(pairs,
		splitFilter(scenarioFilter),
		splitFilter(modelFilter),
		splitFilter(runnerFilter))
	if len(pairs) == 0 {
		return fmt.Errorf("no test pairs matched the filters")
	}

	cacheDir := runCacheDir
	if cacheDir == "" {
		cacheDir = suite.Defaults.CacheDir
	}
	if cacheDir == "" {
		cacheDir = ".gauntlet-cache"
	}
	resultCache, err := cache.New(cacheDir)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}

	workRoot := workDir
	if workRoot == "" {
		workRoot = suite.Defaults.WorkDir
	}
	if workRoot == "" {
		workRoot, err = os.MkdirTemp("", "gauntlet-")
		if err != nil {
			return fmt.Errorf("creating work root: %w", err)
		}
		defer os.RemoveAll(workRoot) //nolint:errcheck
	}

	repeat := repeatCount
	if repeat <= 0 {
		repeat = suite.Defaults.Repeat
	}
	if repeat <= 0 {
		repeat = 1
	}

	var orchOpts []orchestration.OrchestratorOption
	if suite.Defaults.TurnTimeoutSec > 0 {
		orchOpts = append(orchOpts,
			orchestration.WithTurnTimeout(time.Duration(suite.Defaults.TurnTimeoutSec)*time.Second))
	}
	orch := orchestration.NewOrchestrator(validation.NewEngine(), workRoot, orchOpts...)

	engineOpts := []orchestration.EngineOption{
		orchestration.WithCache(resultCache),
		orchestration.WithRepeat(repeat),
		orchestration.WithHooks(suite.Hooks),
		orchestration.WithVerbose(verbose),
	}
	if noCache {
		engineOpts = append(engineOpts, orchestration.WithNoCache())
	}
	engine := orchestration.NewEngine(orch, engineOpts...)
	engine.OnProgress(newProgressPrinter(verbose))

	results, err := engine.Run(cmd.Context(), pairs)
	if err != nil {
		return err
	}

	summary := reporting.Summarize(suite.Name, results, started)
	summary.RunID = uuid.NewString()
	summary.WriteTable(os.Stdout)

	if outputPath != "" {
		if err := summary.WriteJSON(outputPath); err != nil {
			return fmt.Errorf("writing results: %w", err)
		}
		fmt.Printf("Results written to %s\n", outputPath)
	}
	if junitPath != "" {
		if err := reporting.WriteJUnitXML(summary, junitPath); err != nil {
			return fmt.Errorf("writing JUnit XML: %w", err)
		}
		fmt.Printf("JUnit XML written to %s\n", filepath.Clean(junitPath))
	}

	if summary.Failed > 0 {
		return &PairFailureError{
			Message: fmt.Sprintf("%d of %d pairs failed", summary.Failed, summary.Total),
		}
	}
	return nil
}

func splitFilter(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	filters := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			filters = append(filters, p)
		}
	}
	return filters
}
