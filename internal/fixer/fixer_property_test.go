package fixer

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/bharatbuild/buildfix/internal/classify"
	"github.com/bharatbuild/buildfix/internal/fixrules"
	"github.com/bharatbuild/buildfix/internal/models"
)

// callCounter counts Classify invocations around the real classifier.
type callCounter struct {
	inner *classify.Classifier
	calls int
}

func (c *callCounter) Classify(output string) []models.TerminalError {
	c.calls++
	return c.inner.Classify(output)
}

func TestRetryCapProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	// Property: once the retry cap is reached, further calls refuse retry
	// without classifying, and the fix history stops growing.
	properties.Property("calls beyond the cap are refused without classification", prop.ForAll(
		func(module string, extraCalls int) bool {
			counter := &callCounter{inner: classify.New()}
			exec := &recordingExecutor{}
			f := New("proj-p", "user-p", "/work", counter, fixrules.New(), exec, nil)

			out := fmt.Sprintf("Error: Cannot find module '%s'", module)
			for i := 0; i < MaxRetries; i++ {
				r := f.AnalyzeAndFix(context.Background(), out, 1, "npm run build")
				if !r.Applied {
					return false
				}
			}

			callsAtCap := counter.calls
			historyAtCap := len(f.History())

			for i := 0; i < extraCalls; i++ {
				r := f.AnalyzeAndFix(context.Background(), out, 1, "npm run build")
				if r.RetryAllowed {
					return false
				}
				if r.RetryCount != MaxRetries {
					return false
				}
			}

			return counter.calls == callsAtCap && len(f.History()) == historyAtCap
		},
		gen.RegexMatch(`[a-z][a-z0-9-]{1,15}`),
		gen.IntRange(1, 5),
	))

	// Property: escalated results never consume retries.
	properties.Property("escalation leaves the retry count unchanged", prop.ForAll(
		func(noise string) bool {
			f := New("proj-p", "user-p", "/work", classify.New(), fixrules.New(), &recordingExecutor{}, nil)

			before := f.RetryCount()
			r := f.AnalyzeAndFix(context.Background(), "mystery failure "+noise, 1, "make")
			return r.NeedsAI && f.RetryCount() == before
		},
		gen.RegexMatch(`[a-z ]{0,40}`),
	))

	properties.TestingRun(t)
}
