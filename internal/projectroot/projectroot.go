// Package projectroot locates the repository a command operates on.
package projectroot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Feature: CORE_REPO_CONTRACT
// Spec: spec/system/contract.md

// ErrNotFound is returned when no ancestor of the start directory holds a
// .git entry.
var ErrNotFound = errors.New("repository root not found")

// Find walks up from start to the first directory containing .git, either a
// directory (main checkout) or a file (linked worktree).
func Find(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", start, err)
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	for {
		if _, err := os.Lstat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w from %s", ErrNotFound, start)
		}
		dir = parent
	}
}

// FindOrCwd returns Find(start), falling back to start itself when it is
// not inside a repository. Commands that only read files use this so they
// also work on exported document trees.
func FindOrCwd(start string) (string, error) {
	root, err := Find(start)
	if errors.Is(err, ErrNotFound) {
		return filepath.Abs(start)
	}
	return root, err
}
