package fixer

import (
	"context"
	"strings"
	"testing"

	"github.com/bharatbuild/buildfix/internal/classify"
	"github.com/bharatbuild/buildfix/internal/fixrules"
	"github.com/bharatbuild/buildfix/internal/models"
	"github.com/bharatbuild/buildfix/internal/sandbox"
)

// recordingExecutor records commands and file writes, returning a
// configurable exit code.
type recordingExecutor struct {
	commands []string
	writes   map[string]string
	exitCode int
	stderr   string
	runErr   error
	writeErr error
}

func (e *recordingExecutor) RunCommand(_ context.Context, command, _ string) (*sandbox.CommandResult, error) {
	e.commands = append(e.commands, command)
	if e.runErr != nil {
		return nil, e.runErr
	}
	return &sandbox.CommandResult{ExitCode: e.exitCode, Stderr: e.stderr}, nil
}

func (e *recordingExecutor) WriteFile(_ context.Context, path string, content []byte) error {
	if e.writeErr != nil {
		return e.writeErr
	}
	if e.writes == nil {
		e.writes = make(map[string]string)
	}
	e.writes[path] = string(content)
	return nil
}

func TestAnalyzeAndFix_AppliesDependencyFix(t *testing.T) {
	exec := &recordingExecutor{}
	f := New("proj-1", "user-1", "/work/proj-1", classify.New(), fixrules.New(), exec, nil)

	out := "Error: Cannot find module 'lodash'\n    at Function.Module._resolveFilename"
	result := f.AnalyzeAndFix(context.Background(), out, 1, "npm run build")

	if !result.Applied {
		t.Fatalf("Applied = false, message: %s", result.Message)
	}
	if result.NeedsAI {
		t.Error("NeedsAI = true for a rule-fixable error")
	}
	if result.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", result.RetryCount)
	}
	if len(exec.commands) != 1 || exec.commands[0] != "npm install lodash --save" {
		t.Errorf("commands = %v", exec.commands)
	}
	if h := f.History(); len(h) != 1 || h[0].Command != "npm install lodash --save" {
		t.Errorf("history = %+v", h)
	}
}

func TestAnalyzeAndFix_UnmatchedOutputEscalates(t *testing.T) {
	exec := &recordingExecutor{}
	f := New("proj-1", "user-1", "/work", classify.New(), fixrules.New(), exec, nil)

	result := f.AnalyzeAndFix(context.Background(), "something exploded in a novel way", 1, "make")

	if !result.NeedsAI {
		t.Error("NeedsAI = false for unmatched output")
	}
	if !result.RetryAllowed {
		t.Error("RetryAllowed = false; escalation does not consume retries")
	}
	if result.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0 (no fix applied)", result.RetryCount)
	}
	if len(exec.commands) != 0 {
		t.Errorf("executor ran %v for an unmatched error", exec.commands)
	}
}

func TestAnalyzeAndFix_RequiresAIFixEscalatesWithoutApplying(t *testing.T) {
	exec := &recordingExecutor{}
	f := New("proj-1", "user-1", "/work", classify.New(), fixrules.New(), exec, nil)

	// Relative import misses are never auto-installed.
	out := "Error: Cannot find module './components/Header'"
	result := f.AnalyzeAndFix(context.Background(), out, 1, "npm run build")

	if !result.NeedsAI {
		t.Error("NeedsAI = false for a relative import miss")
	}
	if result.Applied {
		t.Error("Applied = true; relative imports must not trigger installs")
	}
	if result.Fix == nil || !result.Fix.RequiresAI {
		t.Errorf("Fix = %+v, want a RequiresAI fix for context", result.Fix)
	}
	if len(exec.commands) != 0 {
		t.Errorf("executor ran %v", exec.commands)
	}
}

func TestAnalyzeAndFix_FailedApplicationEscalatesWithoutRetryIncrement(t *testing.T) {
	exec := &recordingExecutor{exitCode: 1, stderr: "npm ERR! network"}
	f := New("proj-1", "user-1", "/work", classify.New(), fixrules.New(), exec, nil)

	out := "Error: Cannot find module 'lodash'"
	result := f.AnalyzeAndFix(context.Background(), out, 1, "npm run build")

	if !result.NeedsAI {
		t.Error("NeedsAI = false after a failed fix application")
	}
	if result.Applied {
		t.Error("Applied = true for a failed install")
	}
	if f.RetryCount() != 0 {
		t.Errorf("RetryCount = %d, want 0 (only successful applications count)", f.RetryCount())
	}
	if len(f.History()) != 0 {
		t.Error("failed fix recorded in history")
	}
	if !strings.Contains(result.Message, "applying fix failed") {
		t.Errorf("Message = %q", result.Message)
	}
}

func TestAnalyzeAndFix_FileEditFix(t *testing.T) {
	exec := &recordingExecutor{}
	f := New("proj-1", "user-1", "/work/proj-1", classify.New(), fixrules.New(), exec, nil)

	out := "error TS5083: Cannot read file 'tsconfig.node.json'.\nError: ENOENT: no such file or directory, open 'tsconfig.node.json'"
	result := f.AnalyzeAndFix(context.Background(), out, 1, "npm run build")

	if !result.Applied {
		t.Fatalf("Applied = false, message: %s", result.Message)
	}
	content, ok := exec.writes["/work/proj-1/tsconfig.node.json"]
	if !ok {
		t.Fatalf("no write recorded, writes = %v", exec.writes)
	}
	if !strings.Contains(content, "composite") {
		t.Errorf("written content = %q", content)
	}
}

func TestAnalyzeAndFix_PortFixIsAdvisory(t *testing.T) {
	exec := &recordingExecutor{}
	f := New("proj-1", "user-1", "/work", classify.New(), fixrules.New(), exec, nil)

	result := f.AnalyzeAndFix(context.Background(), "Error: listen EADDRINUSE: address already in use :::3000", 1, "npm run dev")

	if !result.Applied {
		t.Fatalf("Applied = false, message: %s", result.Message)
	}
	if result.Fix.Type != models.FixTypePortChange {
		t.Errorf("fix type = %s", result.Fix.Type)
	}
	if result.Fix.NewPort != 3001 {
		t.Errorf("NewPort = %d, want 3001", result.Fix.NewPort)
	}
	if len(exec.commands) != 0 {
		t.Errorf("port fix executed commands: %v", exec.commands)
	}
}

func TestResetRetryCount(t *testing.T) {
	exec := &recordingExecutor{}
	f := New("proj-1", "user-1", "/work", classify.New(), fixrules.New(), exec, nil)

	for i := 0; i < MaxRetries; i++ {
		f.AnalyzeAndFix(context.Background(), "Error: Cannot find module 'lodash'", 1, "npm run build")
	}
	if f.RetryCount() != MaxRetries {
		t.Fatalf("RetryCount = %d, want %d", f.RetryCount(), MaxRetries)
	}

	f.ResetRetryCount()
	if f.RetryCount() != 0 {
		t.Errorf("RetryCount = %d after reset", f.RetryCount())
	}

	result := f.AnalyzeAndFix(context.Background(), "Error: Cannot find module 'lodash'", 1, "npm run build")
	if !result.RetryAllowed || !result.Applied {
		t.Errorf("fixing blocked after reset: %+v", result)
	}
}

func TestRegistry_SamePairSameFixer(t *testing.T) {
	r := NewRegistry(classify.New(), fixrules.New(), &recordingExecutor{}, nil)

	a := r.Get("proj-1", "user-1", "/work")
	b := r.Get("proj-1", "user-1", "/work")
	if a != b {
		t.Error("same project+user pair produced distinct fixers")
	}

	c := r.Get("proj-1", "user-2", "/work")
	if a == c {
		t.Error("different users share a fixer")
	}

	r.Dispose("proj-1", "user-1")
	d := r.Get("proj-1", "user-1", "/work")
	if a == d {
		t.Error("dispose did not drop the fixer")
	}
	if d.RetryCount() != 0 {
		t.Errorf("fresh fixer RetryCount = %d", d.RetryCount())
	}
}

func TestRegistry_ResetProject(t *testing.T) {
	exec := &recordingExecutor{}
	r := NewRegistry(classify.New(), fixrules.New(), exec, nil)

	f1 := r.Get("proj-1", "user-1", "/work")
	f2 := r.Get("proj-1", "user-2", "/work")
	f3 := r.Get("proj-2", "user-1", "/work")

	for _, f := range []*Fixer{f1, f2, f3} {
		f.AnalyzeAndFix(context.Background(), "Error: Cannot find module 'lodash'", 1, "npm run build")
	}

	r.ResetProject("proj-1")

	if f1.RetryCount() != 0 || f2.RetryCount() != 0 {
		t.Error("proj-1 fixers not reset")
	}
	if f3.RetryCount() != 1 {
		t.Errorf("proj-2 fixer reset unexpectedly, RetryCount = %d", f3.RetryCount())
	}
}
