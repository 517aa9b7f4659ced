package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// LocalExecutor runs commands directly on the host via the shell.
type LocalExecutor struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewLocalExecutor creates a LocalExecutor with the given per-command
// timeout. A zero timeout means no limit beyond the caller's context.
func NewLocalExecutor(timeout time.Duration, logger *slog.Logger) *LocalExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalExecutor{timeout: timeout, logger: logger}
}

// RunCommand runs the command through `sh -c` in cwd.
func (e *LocalExecutor) RunCommand(ctx context.Context, command, cwd string) (*CommandResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("running command: %w", err)
		}
	}

	e.logger.Debug("local command completed",
		"command", command,
		"exit_code", result.ExitCode,
		"duration", result.Duration,
	)
	return result, nil
}

// WriteFile writes the file under cwd-relative or absolute path.
func (e *LocalExecutor) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
