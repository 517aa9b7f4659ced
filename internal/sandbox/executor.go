// Package sandbox executes fix commands and file writes in the project's
// execution environment: directly on the host, inside the project
// container, or on a remote sandbox host.
package sandbox

import (
	"context"
	"time"
)

// CommandResult holds the outcome of a command execution.
type CommandResult struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// Success reports whether the command exited cleanly.
func (r *CommandResult) Success() bool {
	return r.ExitCode == 0
}

// Executor is the fix-execution contract. Implementations must return the
// real exit code of the command; optimistic success reporting is not
// allowed from any mode.
type Executor interface {
	// RunCommand runs a shell command in the given working directory.
	RunCommand(ctx context.Context, command, cwd string) (*CommandResult, error)

	// WriteFile writes content to a file in the project workspace,
	// creating parent directories as needed.
	WriteFile(ctx context.Context, path string, content []byte) error
}
