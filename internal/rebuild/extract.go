package rebuild

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Position patterns cover the file/line/column conventions of Node stack
// frames, Python tracebacks, the TypeScript compiler, esbuild-style
// bundler output, and a generic file:line fallback. First match wins.
var positionPatterns = []*regexp.Regexp{
	// Node: at fn (/app/src/index.js:10:5)
	regexp.MustCompile(`at .*?\(?([\w@./\\-]+\.(?:js|jsx|ts|tsx|mjs|cjs)):(\d+):(\d+)\)?`),
	// Python: File "app/main.py", line 12
	regexp.MustCompile(`File "([^"]+)", line (\d+)`),
	// TypeScript compiler: src/App.tsx(14,7): error TS2322
	regexp.MustCompile(`([\w@./\\-]+\.(?:ts|tsx))\((\d+),(\d+)\)`),
	// Bundler: src/App.jsx:3:18:
	regexp.MustCompile(`([\w@./\\-]+\.(?:js|jsx|ts|tsx|css|vue|svelte)):(\d+):(\d+)`),
	// Generic file:line
	regexp.MustCompile(`([\w@./\\-]+\.\w{1,4}):(\d+)`),
}

// Module patterns cover the module-name conventions of Node, Python,
// webpack and Vite errors. First match wins.
var modulePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)cannot find module '([^']+)'`),
	regexp.MustCompile(`(?i)no module named '?([\w.-]+)'?`),
	regexp.MustCompile(`(?i)can't resolve '([^']+)'`),
	regexp.MustCompile(`(?i)failed to resolve import "([^"]+)"`),
}

// portPattern extracts the contested port for port-in-use errors.
var portPattern = regexp.MustCompile(`(?i)(?:eaddrinuse|address already in use)[^\d]*?(\d{2,5})`)

// Known error-name prefixes stripped from the message line.
var messagePrefixes = []string{
	"Uncaught ",
	"UnhandledPromiseRejectionWarning: ",
	"Error: ",
	"error: ",
	"ERROR: ",
	"Fatal error: ",
}

const maxMessageLength = 500

// extracted holds the fields pulled out of a raw log.
type extracted struct {
	file   string
	line   int
	column int
	module string
	port   int
}

// extractFields applies the position and module pattern tables to the raw
// log. Within each table the first matching pattern wins.
func extractFields(raw string) extracted {
	var e extracted

	for _, p := range positionPatterns {
		m := p.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		e.file = m[1]
		e.line, _ = strconv.Atoi(m[2])
		if len(m) > 3 {
			e.column, _ = strconv.Atoi(m[3])
		}
		break
	}

	for _, p := range modulePatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			e.module = m[1]
			break
		}
	}

	if m := portPattern.FindStringSubmatch(raw); m != nil {
		e.port, _ = strconv.Atoi(m[1])
	}

	return e
}

// extractMessage returns the first non-empty line of the log with known
// error-name prefixes stripped, truncated to maxMessageLength.
func extractMessage(raw string) string {
	var msg string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			msg = line
			break
		}
	}

	for _, prefix := range messagePrefixes {
		msg = strings.TrimPrefix(msg, prefix)
	}

	if len(msg) > maxMessageLength {
		// Back up to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := maxMessageLength
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
