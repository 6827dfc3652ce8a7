package runner

import (
	"context"

	"github.com/bartekus/sddgov/internal/config"
)

// Deps is handed to every check.
type Deps struct {
	RepoRoot string
	Config   *config.Config
}

// Check is one named governance check.
type Check interface {
	// ID returns the stable name, e.g. "gate:worktree".
	ID() string
	Run(ctx context.Context, deps *Deps) CheckResult
}
