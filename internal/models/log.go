package models

import "time"

// LogSource identifies where a log entry originated.
type LogSource string

const (
	SourceBrowser LogSource = "browser"
	SourceBuild   LogSource = "build"
	SourceBackend LogSource = "backend"
	SourceNetwork LogSource = "network"
	SourceDocker  LogSource = "docker"
)

// KnownSources lists every valid log source.
var KnownSources = []LogSource{SourceBrowser, SourceBuild, SourceBackend, SourceNetwork, SourceDocker}

// ParseLogSource coerces an arbitrary source string to a known LogSource.
// Unknown sources map to SourceBackend.
func ParseLogSource(s string) LogSource {
	switch LogSource(s) {
	case SourceBrowser, SourceBuild, SourceBackend, SourceNetwork, SourceDocker:
		return LogSource(s)
	default:
		return SourceBackend
	}
}

// LogLevel is the severity of a log entry.
type LogLevel string

const (
	LevelError   LogLevel = "error"
	LevelWarning LogLevel = "warning"
	LevelInfo    LogLevel = "info"
	LevelDebug   LogLevel = "debug"
)

// ParseLogLevel coerces an arbitrary level string to a known LogLevel.
// Unknown levels map to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch LogLevel(s) {
	case LevelError, LevelWarning, LevelInfo, LevelDebug:
		return LogLevel(s)
	default:
		return LevelInfo
	}
}

// LogEntry represents a single log entry ingested from one of the five
// sources. Entries are immutable once stored.
type LogEntry struct {
	Source    LogSource `json:"source"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`

	// Optional position information for error entries.
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Stack  string `json:"stack,omitempty"`

	// Optional network request information.
	URL    string `json:"url,omitempty"`
	Status int    `json:"status,omitempty"`
	Method string `json:"method,omitempty"`

	// Free-form metadata supplied by the forwarder.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IsError reports whether the entry is an error-level entry.
func (e *LogEntry) IsError() bool {
	return e.Level == LevelError
}

// StackFrame is a single parsed frame from a stack trace.
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column,omitempty"`
}

// StackTrace is a parsed stack trace associated with a log entry.
type StackTrace struct {
	Source    LogSource    `json:"source"`
	Message   string       `json:"message"`
	Frames    []StackFrame `json:"frames"`
	Timestamp time.Time    `json:"timestamp"`
}
