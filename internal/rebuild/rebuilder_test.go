package rebuild

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bharatbuild/buildfix/internal/models"
)

func TestRebuild_PythonModuleNotFound(t *testing.T) {
	r := New(nil)

	detected := r.Rebuild("ModuleNotFoundError: No module named 'flask'", nil)

	if detected.Type != models.ErrorTypePythonModuleNotFound {
		t.Errorf("Type = %q, want %q", detected.Type, models.ErrorTypePythonModuleNotFound)
	}
	if detected.Module != "flask" {
		t.Errorf("Module = %q, want flask", detected.Module)
	}
	if detected.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", detected.Confidence)
	}
	if !strings.Contains(detected.RebuiltLog, "Traceback (most recent call last):") {
		t.Error("rebuilt log missing synthesized traceback")
	}
	if !strings.Contains(detected.RebuiltLog, "pip install flask") {
		t.Error("rebuilt log missing install suggestion")
	}
	if !strings.Contains(detected.RebuiltLog, "original output") {
		t.Error("rebuilt log missing appended original")
	}
}

func TestRebuild_NodeModuleNotFound(t *testing.T) {
	r := New(nil)

	detected := r.Rebuild("Error: Cannot find module 'express'", nil)

	if detected.Type != models.ErrorTypeNodeModuleNotFound {
		t.Errorf("Type = %q, want %q", detected.Type, models.ErrorTypeNodeModuleNotFound)
	}
	if !strings.Contains(detected.RebuiltLog, "npm install express") {
		t.Error("rebuilt log missing install suggestion")
	}
	if !strings.Contains(detected.RebuiltLog, "unknown_file") {
		t.Error("rebuilt log should substitute the default file placeholder")
	}
}

func TestRebuild_CompleteLogNotRebuilt(t *testing.T) {
	r := New(nil)

	complete := "TypeError: Cannot read properties of undefined (reading 'map')\n" +
		"    at App (/app/src/App.jsx:14:22)\n" +
		"    at renderWithHooks (/app/node_modules/react-dom/cjs/react-dom.development.js:14985:18)\n" +
		"    at mountIndeterminateComponent (/app/node_modules/react-dom/cjs/react-dom.development.js:17811:13)"

	detected := r.Rebuild(complete, nil)
	if detected.RebuiltLog != normalizeWhitespace(complete) {
		t.Errorf("complete log was rebuilt:\ngot:  %q\nwant: %q", detected.RebuiltLog, normalizeWhitespace(complete))
	}
	if detected.File != "/app/src/App.jsx" {
		t.Errorf("File = %q, want /app/src/App.jsx", detected.File)
	}
	if detected.Line != 14 || detected.Column != 22 {
		t.Errorf("Line:Column = %d:%d, want 14:22", detected.Line, detected.Column)
	}
}

func TestRebuild_NoTemplateAnnotates(t *testing.T) {
	r := New(nil)

	detected := r.Rebuild("Warning: Invalid hook call. Hooks can only be called inside of the body of a function component.", nil)

	if detected.Type != models.ErrorTypeReact {
		t.Fatalf("Type = %q, want %q", detected.Type, models.ErrorTypeReact)
	}
	if !strings.Contains(detected.RebuiltLog, "no stack template") {
		t.Error("expected an investigative note for types without a template")
	}
	if !strings.Contains(detected.RebuiltLog, "Invalid hook call") {
		t.Error("original output should be preserved")
	}
}

func TestRebuild_GenericConfidenceLadder(t *testing.T) {
	r := New(nil)

	tests := []struct {
		name       string
		input      string
		confidence float64
	}{
		{"error keyword", "something went wrong: error in pipeline", 0.3},
		{"failed keyword", "build failed after 3s", 0.2},
		{"nothing", "all quiet on this line", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detected := r.Rebuild(tt.input, nil)
			if detected.Type != models.ErrorTypeGeneric {
				t.Errorf("Type = %q, want %q", detected.Type, models.ErrorTypeGeneric)
			}
			if detected.Confidence != tt.confidence {
				t.Errorf("Confidence = %v, want %v", detected.Confidence, tt.confidence)
			}
		})
	}
}

func TestRebuild_ContextOverridesMissingFields(t *testing.T) {
	r := New(nil)

	detected := r.Rebuild("Error: Cannot find module 'chalk'", map[string]string{"file": "src/cli.js"})
	if detected.File != "src/cli.js" {
		t.Errorf("File = %q, want src/cli.js", detected.File)
	}
	if !strings.Contains(detected.RebuiltLog, "src/cli.js") {
		t.Error("context file should appear in the rebuilt log")
	}
}

func TestExtractMessage_StripsPrefixesAndTruncates(t *testing.T) {
	msg := extractMessage("Error: boom\nsecond line")
	if msg != "boom" {
		t.Errorf("message = %q, want boom", msg)
	}

	long := "Error: " + strings.Repeat("x", 600)
	if got := extractMessage(long); len(got) != 500 {
		t.Errorf("message length = %d, want 500", len(got))
	}
}

func TestExtractMessage_TruncatesOnRuneBoundary(t *testing.T) {
	// 499 ASCII bytes followed by multi-byte runes puts a rune exactly
	// across the truncation point.
	long := strings.Repeat("x", 499) + strings.Repeat("日本語", 20)
	got := extractMessage(long)

	if !utf8.ValidString(got) {
		t.Fatalf("truncated message is not valid UTF-8: %q", got[490:])
	}
	if len(got) > 500 {
		t.Errorf("message length = %d, want <= 500", len(got))
	}
	if len(got) < 499 {
		t.Errorf("message length = %d, truncated too aggressively", len(got))
	}
}

func TestDetectAndSuggestFix(t *testing.T) {
	r := New(nil)

	tests := []struct {
		input   string
		typ     models.ErrorType
		command string
	}{
		{"Error: Cannot find module 'lodash'", models.ErrorTypeNodeModuleNotFound, "npm install lodash"},
		{"ModuleNotFoundError: No module named 'requests'", models.ErrorTypePythonModuleNotFound, "pip install requests"},
		{"Error: listen EADDRINUSE :::8000", models.ErrorTypePortInUse, "lsof -ti :8000 | xargs kill"},
	}

	for _, tt := range tests {
		s := r.DetectAndSuggestFix(tt.input)
		if s.Type != tt.typ {
			t.Errorf("DetectAndSuggestFix(%q).Type = %q, want %q", tt.input, s.Type, tt.typ)
		}
		if s.Command != tt.command {
			t.Errorf("DetectAndSuggestFix(%q).Command = %q, want %q", tt.input, s.Command, tt.command)
		}
		if s.Suggestion == "" {
			t.Errorf("DetectAndSuggestFix(%q) has no suggestion", tt.input)
		}
	}
}
