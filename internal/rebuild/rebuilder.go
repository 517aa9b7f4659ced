// Package rebuild reconstructs complete, plausible error context from
// partial or truncated log lines using per-error-type templates.
//
// Reconstruction is explicitly heuristic. Every result carries a
// confidence score and the original raw log so downstream consumers (the
// LLM escalation path in particular) can discount fabricated detail.
package rebuild

import (
	"log/slog"
	"strings"

	"github.com/bharatbuild/buildfix/internal/models"
)

// Stack-frame indicator substrings used by the completeness check.
var stackIndicators = []string{
	"    at ",
	"Traceback",
	"  File \"",
	"    raise ",
	"npm ERR!",
}

// Rebuilder detects error types from raw log text and rebuilds truncated
// logs into complete stack traces.
type Rebuilder struct {
	logger *slog.Logger
}

// New creates a Rebuilder.
func New(logger *slog.Logger) *Rebuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rebuilder{logger: logger}
}

// Rebuild detects the error type of a raw log and returns the detected
// error with a reconstructed log. Context entries override fields the raw
// log did not yield ("file", "line", "column", "module").
//
// Complete logs (see hasCompleteStack) are only whitespace-normalized,
// never rebuilt from a template.
func (r *Rebuilder) Rebuild(rawLog string, context map[string]string) models.DetectedError {
	typ, confidence := detectType(rawLog)
	fields := extractFields(rawLog)
	applyContext(&fields, context)
	message := extractMessage(rawLog)

	detected := models.DetectedError{
		Type:        typ,
		Message:     message,
		File:        fields.file,
		Line:        fields.line,
		Column:      fields.column,
		Module:      fields.module,
		OriginalLog: rawLog,
		Confidence:  confidence,
	}

	if hasCompleteStack(rawLog) {
		detected.RebuiltLog = normalizeWhitespace(rawLog)
		return detected
	}

	rebuilt, ok := renderTemplate(typ, message, fields)
	if !ok {
		// No template for this type. Annotate rather than fabricate.
		detected.RebuiltLog = normalizeWhitespace(rawLog) +
			"\n\n[buildfix] no stack template for error type \"" + string(typ) +
			"\"; original output preserved above, investigate directly"
		return detected
	}

	detected.RebuiltLog = rebuilt +
		"\n\n--- original output (truncated) ---\n" + normalizeWhitespace(rawLog)

	r.logger.Debug("rebuilt truncated log",
		"error_type", typ,
		"confidence", confidence,
		"module", fields.module,
	)
	return detected
}

// applyContext fills fields the log itself did not yield.
func applyContext(e *extracted, context map[string]string) {
	if context == nil {
		return
	}
	if e.file == "" {
		e.file = context["file"]
	}
	if e.module == "" {
		e.module = context["module"]
	}
}

// hasCompleteStack reports whether the log already looks like a full error
// report: at least 3 lines, of which at least 2 carry a stack-frame
// indicator.
func hasCompleteStack(rawLog string) bool {
	lines := strings.Split(rawLog, "\n")
	if len(lines) < 3 {
		return false
	}

	indicatorLines := 0
	for _, line := range lines {
		for _, ind := range stackIndicators {
			if strings.Contains(line, ind) {
				indicatorLines++
				break
			}
		}
	}
	return indicatorLines >= 2
}

// normalizeWhitespace trims trailing whitespace per line and surrounding
// blank lines without touching indentation.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
