package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// RemoteExecutor defers command execution to a remote sandbox host over
// HTTP. Unlike earlier iterations of this system, remote execution is
// confirmed: the response carries the real exit code and output, and a
// transport failure is an error, never a silent success.
type RemoteExecutor struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewRemoteExecutor creates a RemoteExecutor for the sandbox host at
// baseURL (for example "http://sandbox-1:7070").
func NewRemoteExecutor(baseURL string, timeout time.Duration, logger *slog.Logger) *RemoteExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &RemoteExecutor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type remoteCommandRequest struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
}

type remoteCommandResponse struct {
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMS int64  `json:"duration_ms"`
}

type remoteWriteRequest struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// RunCommand posts the command to the sandbox host and returns its
// confirmed result.
func (e *RemoteExecutor) RunCommand(ctx context.Context, command, cwd string) (*CommandResult, error) {
	var resp remoteCommandResponse
	if err := e.post(ctx, "/v1/exec", remoteCommandRequest{Command: command, Cwd: cwd}, &resp); err != nil {
		return nil, fmt.Errorf("remote exec: %w", err)
	}

	result := &CommandResult{
		ExitCode: resp.ExitCode,
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		Duration: time.Duration(resp.DurationMS) * time.Millisecond,
	}

	e.logger.Debug("remote command completed",
		"command", command,
		"exit_code", result.ExitCode,
		"duration", result.Duration,
	)
	return result, nil
}

// WriteFile posts the file content to the sandbox host.
func (e *RemoteExecutor) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := e.post(ctx, "/v1/files", remoteWriteRequest{Path: path, Content: content}, nil); err != nil {
		return fmt.Errorf("remote write: %w", err)
	}
	return nil
}

// post sends a JSON request and decodes the JSON response into out.
func (e *RemoteExecutor) post(ctx context.Context, path string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sandbox host returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
