package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wesamahakem/gauntlet/internal/cache"
)

var cacheDir string

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the run result cache",
		Long: `Manage the run result cache.

The cache stores pair results to skip re-running unchanged combinations.
Cached results are keyed by scenario content, model and runner configuration,
runner binary, and tool-server binaries.`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the run result cache",
		Long: `Clear all cached pair results.

This removes all cached results and transcripts. The next run will re-execute
every pair from scratch.`,
		RunE: cacheClearE,
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", ".gauntlet-cache", "Cache directory to clear")

	return cmd
}

func cacheClearE(cmd *cobra.Command, args []string) error {
	absDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	c, err := cache.New(absDir)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	fmt.Printf("Cache cleared: %s\n", absDir)
	return nil
}
