// Package workspace manages the per-pair working directories agents run in.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Prepare destroys any existing directory at dir, recreates it, and
// materializes the scenario's setup file map into it. Setup paths are
// relative to dir; anything escaping it is rejected.
func Prepare(dir string, setup map[string]string) error {
	if dir == "" {
		return fmt.Errorf("workspace dir is not set")
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing stale workspace: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}

	base := filepath.Clean(dir)
	baseWithSep := base + string(os.PathSeparator)

	for relPath, content := range setup {
		if relPath == "" {
			continue
		}

		clean := filepath.Clean(relPath)
		if filepath.IsAbs(clean) {
			return fmt.Errorf("setup path %q must be relative", relPath)
		}

		fullPath := filepath.Clean(filepath.Join(base, clean))
		if !strings.HasPrefix(fullPath+string(os.PathSeparator), baseWithSep) {
			return fmt.Errorf("setup path %q escapes workspace", relPath)
		}

		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return fmt.Errorf("creating directory for %q: %w", relPath, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			return fmt.Errorf("writing setup file %q: %w", relPath, err)
		}
	}

	return nil
}
