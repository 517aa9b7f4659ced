package logbus

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/bharatbuild/buildfix/internal/models"
)

// maxStackFrames bounds how many frames a single trace keeps.
const maxStackFrames = 10

// fileRefPatterns find path-like references in free-form messages, one
// per source-language convention.
var fileRefPatterns = []*regexp.Regexp{
	// Node stack frame: at fn (src/App.jsx:10:5)
	regexp.MustCompile(`\(([\w./-]+\.(?:js|jsx|ts|tsx|mjs|cjs)):\d+:\d+\)`),
	// Python traceback: File "app/main.py", line 3
	regexp.MustCompile(`File "([\w./-]+\.py)"`),
	// TypeScript diagnostic: src/app.ts(10,5)
	regexp.MustCompile(`([\w./-]+\.tsx?)\(\d+,\d+\)`),
	// Bundler/bare reference with position: src/App.jsx:10:5
	regexp.MustCompile(`(?:^|[\s'"])([\w./-]+\.(?:js|jsx|ts|tsx|mjs|cjs|py|css|scss|json|html|vue)):\d+`),
	// Quoted path with a known extension
	regexp.MustCompile(`['"]([\w./-]+\.(?:js|jsx|ts|tsx|mjs|cjs|py|css|scss|json|html|vue))['"]`),
}

// vendorGlobs mark dependency and build-output paths that never count as
// project files.
var vendorGlobs = []string{
	"**/node_modules/**",
	"node_modules/**",
	"**/site-packages/**",
	"**/dist/**",
	"dist/**",
	"**/.next/**",
	"**/__pycache__/**",
	"**/.venv/**",
}

func isVendorPath(path string) bool {
	p := strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "./")
	for _, g := range vendorGlobs {
		if ok, _ := doublestar.Match(g, p); ok {
			return true
		}
	}
	// Node built-ins show up as node:internal/modules/...
	return strings.HasPrefix(p, "node:")
}

// extractFileReferences finds project file paths mentioned in a message.
func extractFileReferences(message string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, re := range fileRefPatterns {
		for _, m := range re.FindAllStringSubmatch(message, -1) {
			path := m[1]
			if seen[path] || isVendorPath(path) {
				continue
			}
			seen[path] = true
			out = append(out, path)
		}
	}
	return out
}

// Stack frame shapes across Node and Python runtimes.
var (
	// at makeRequest (src/api/client.js:42:15)
	nodeFrameFn = regexp.MustCompile(`^\s*at\s+(.+?)\s+\((.+?):(\d+):(\d+)\)$`)
	// at src/api/client.js:42:15
	nodeFrameBare = regexp.MustCompile(`^\s*at\s+(.+?):(\d+):(\d+)$`)
	// File "app/main.py", line 3, in <module>
	pythonFrame = regexp.MustCompile(`^\s*File "(.+?)", line (\d+)(?:, in (.+))?$`)
)

// parseStackTrace parses up to maxStackFrames structured frames from a
// raw stack string, skipping frames inside vendor directories.
func parseStackTrace(source models.LogSource, message, stack string, at time.Time) models.StackTrace {
	trace := models.StackTrace{
		Source:    source,
		Message:   message,
		Timestamp: at,
	}

	for _, line := range strings.Split(stack, "\n") {
		if len(trace.Frames) >= maxStackFrames {
			break
		}

		var frame models.StackFrame
		switch {
		case nodeFrameFn.MatchString(line):
			m := nodeFrameFn.FindStringSubmatch(line)
			frame = models.StackFrame{
				Function: m[1],
				File:     m[2],
				Line:     atoi(m[3]),
				Column:   atoi(m[4]),
			}
		case nodeFrameBare.MatchString(line):
			m := nodeFrameBare.FindStringSubmatch(line)
			frame = models.StackFrame{
				Function: "<anonymous>",
				File:     m[1],
				Line:     atoi(m[2]),
				Column:   atoi(m[3]),
			}
		case pythonFrame.MatchString(line):
			m := pythonFrame.FindStringSubmatch(line)
			fn := m[3]
			if fn == "" {
				fn = "<module>"
			}
			frame = models.StackFrame{
				Function: fn,
				File:     m[1],
				Line:     atoi(m[2]),
			}
		default:
			continue
		}

		if isVendorPath(frame.File) {
			continue
		}
		trace.Frames = append(trace.Frames, frame)
	}
	return trace
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
