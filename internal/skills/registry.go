package skills

import (
	"github.com/bartekus/sddgov/internal/runner"
)

// Feature: CHECK_RUNNER
// Spec: spec/cli/run.md

// Registry is the canonical run order.
var Registry = []runner.Check{
	NewLint(),
	NewDecisions(),
	NewWorktreeGate(),
	NewApprovalGate(),
}
