// Package hooks runs user-configured shell commands at run lifecycle points.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Hook defines a single lifecycle command.
type Hook struct {
	Command          string `yaml:"command" json:"command"`
	WorkingDirectory string `yaml:"working_directory,omitempty" json:"working_directory,omitempty"`
	ExitCodes        []int  `yaml:"exit_codes,omitempty" json:"exit_codes,omitempty"`
	ErrorOnFail      bool   `yaml:"error_on_fail,omitempty" json:"error_on_fail,omitempty"`
}

// Config holds all lifecycle hooks.
type Config struct {
	BeforeRun  []Hook `yaml:"before_run,omitempty" json:"before_run,omitempty"`
	AfterRun   []Hook `yaml:"after_run,omitempty" json:"after_run,omitempty"`
	BeforePair []Hook `yaml:"before_pair,omitempty" json:"before_pair,omitempty"`
	AfterPair  []Hook `yaml:"after_pair,omitempty" json:"after_pair,omitempty"`
}

// Runner executes hook commands at lifecycle points.
type Runner struct {
	Verbose bool
}

// Execute runs all hooks for a lifecycle point. name identifies the point
// (e.g. "before_run") for logging and error context.
func (r *Runner) Execute(ctx context.Context, name string, hooks []Hook) error {
	for i, h := range hooks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("hook %s: context canceled: %w", name, err)
		}
		if err := r.runHook(ctx, name, i, h); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runHook(ctx context.Context, name string, index int, h Hook) error {
	if strings.TrimSpace(h.Command) == "" {
		return fmt.Errorf("hook %s[%d]: empty command", name, index)
	}

	parts := strings.Fields(h.Command)
	//nolint:gosec // hook commands are user-configured in suite YAML, not untrusted input
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	if h.WorkingDirectory != "" {
		cmd.Dir = h.WorkingDirectory
	}

	output, err := cmd.CombinedOutput()
	if r.Verbose && len(output) > 0 {
		fmt.Printf("[hook:%s] %s\n", name, string(output))
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if !isAcceptableExit(exitErr.ExitCode(), h.ExitCodes) {
				if h.ErrorOnFail {
					return fmt.Errorf("hook %s[%d]: command exited with code %d", name, index, exitErr.ExitCode())
				}
				fmt.Printf("[WARN] hook %s[%d] exited with code %d (continuing)\n", name, index, exitErr.ExitCode())
			}
			return nil
		}

		// Non-exit error (e.g. command not found)
		if h.ErrorOnFail {
			return fmt.Errorf("hook %s[%d]: %w", name, index, err)
		}
		fmt.Printf("[WARN] hook %s[%d] failed: %v\n", name, index, err)
		return nil
	}

	if !isAcceptableExit(0, h.ExitCodes) {
		if h.ErrorOnFail {
			return fmt.Errorf("hook %s[%d]: command exited with code 0 but expected %v", name, index, h.ExitCodes)
		}
		fmt.Printf("[WARN] hook %s[%d] exited with code 0 but expected %v (continuing)\n", name, index, h.ExitCodes)
	}
	return nil
}

// isAcceptableExit checks whether exitCode is in the allowed list. An empty
// list allows only exit code 0.
func isAcceptableExit(exitCode int, allowedCodes []int) bool {
	if len(allowedCodes) == 0 {
		return exitCode == 0
	}
	for _, code := range allowedCodes {
		if exitCode == code {
			return true
		}
	}
	return false
}
