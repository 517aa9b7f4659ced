package models

import "strconv"

// ErrorCategory is the classifier's 8-way error category (plus unknown).
type ErrorCategory string

const (
	CategoryDependency ErrorCategory = "dependency"
	CategoryFile       ErrorCategory = "file"
	CategoryCommand    ErrorCategory = "command"
	CategoryPort       ErrorCategory = "port"
	CategoryPermission ErrorCategory = "permission"
	CategoryEnv        ErrorCategory = "env"
	CategorySyntax     ErrorCategory = "syntax"
	CategoryRuntime    ErrorCategory = "runtime"
	CategoryUnknown    ErrorCategory = "unknown"
)

// TerminalError is one classified error extracted from terminal output.
// The optional fields are mutually exclusive: which one is set depends on
// the category.
type TerminalError struct {
	Category  ErrorCategory `json:"category"`
	RawError  string        `json:"raw_error"`
	RootCause string        `json:"root_cause"`

	AffectedFile  string `json:"affected_file,omitempty"`
	MissingModule string `json:"missing_module,omitempty"`
	Port          int    `json:"port,omitempty"`
	Command       string `json:"command,omitempty"`

	Confidence float64 `json:"confidence"`
}

// Discriminator returns the category-specific field used for deduplication.
func (e *TerminalError) Discriminator() string {
	switch e.Category {
	case CategoryDependency:
		return e.MissingModule
	case CategoryFile, CategoryPermission:
		return e.AffectedFile
	case CategoryCommand:
		return e.Command
	case CategoryPort:
		if e.Port > 0 {
			return strconv.Itoa(e.Port)
		}
		return ""
	default:
		return ""
	}
}

// FixType identifies the kind of remediation a TerminalFix carries.
type FixType string

const (
	FixTypeCommand    FixType = "command"
	FixTypeFileEdit   FixType = "file_edit"
	FixTypeEnvSet     FixType = "env_set"
	FixTypePortChange FixType = "port_change"
	FixTypeInfo       FixType = "info"
)

// TerminalFix is a deterministic remediation produced by the rule-based
// fixer for a single TerminalError. RequiresAI signals that no further
// local action is possible and the error must be escalated.
type TerminalFix struct {
	Type        FixType `json:"fix_type"`
	Description string  `json:"description"`

	// Command payload (FixTypeCommand).
	Command string `json:"command,omitempty"`

	// File edit payload (FixTypeFileEdit).
	FilePath    string `json:"file_path,omitempty"`
	FileContent string `json:"file_content,omitempty"`

	// Env payload (FixTypeEnvSet).
	EnvKey   string `json:"env_key,omitempty"`
	EnvValue string `json:"env_value,omitempty"`

	// Port change payload (FixTypePortChange). Advisory metadata only;
	// nothing here rewrites the project's run command.
	OldPort int `json:"old_port,omitempty"`
	NewPort int `json:"new_port,omitempty"`

	RequiresAI bool `json:"requires_ai"`
}
