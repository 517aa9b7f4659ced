package sandbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// DockerExecutor runs commands inside the project's running container via
// the docker CLI.
type DockerExecutor struct {
	containerName string
	workDir       string
	timeout       time.Duration
	logger        *slog.Logger
}

// NewDockerExecutor creates a DockerExecutor targeting the named
// container. workDir is the project root inside the container.
func NewDockerExecutor(containerName, workDir string, timeout time.Duration, logger *slog.Logger) *DockerExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	if workDir == "" {
		workDir = "/app"
	}
	return &DockerExecutor{
		containerName: containerName,
		workDir:       workDir,
		timeout:       timeout,
		logger:        logger,
	}
}

// RunCommand runs the command through `docker exec <container> sh -c`.
// cwd overrides the configured workdir when set.
func (e *DockerExecutor) RunCommand(ctx context.Context, command, cwd string) (*CommandResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	workDir := cwd
	if workDir == "" {
		workDir = e.workDir
	}

	args := []string{"exec", "--workdir", workDir, e.containerName, "sh", "-c", command}

	start := time.Now()
	cmd := exec.CommandContext(ctx, "docker", args...)

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
			return nil, fmt.Errorf("running docker exec: %w", err)
		}
	}

	e.logger.Debug("container command completed",
		"container", e.containerName,
		"command", command,
		"exit_code", result.ExitCode,
		"duration", result.Duration,
	)
	return result, nil
}

// WriteFile writes the file inside the container. Content is base64
// encoded on the way in so arbitrary bytes survive the shell.
func (e *DockerExecutor) WriteFile(ctx context.Context, path string, content []byte) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	command := fmt.Sprintf("mkdir -p \"$(dirname %q)\" && echo %s | base64 -d > %q", path, encoded, path)

	result, err := e.RunCommand(ctx, command, "")
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("writing file in container: exit code %d: %s", result.ExitCode, result.Stderr)
	}
	return nil
}
