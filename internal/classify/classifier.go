// Package classify turns raw terminal output into classified terminal errors.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bharatbuild/buildfix/internal/models"
)

// fieldKind says what the pattern's first capture group contains.
type fieldKind int

const (
	fieldNone fieldKind = iota
	fieldModule
	fieldFile
	fieldCommand
	fieldPort
	fieldEnvVar
)

// pattern is one entry in the classification table.
type pattern struct {
	re         *regexp.Regexp
	category   models.ErrorCategory
	rootCause  string
	field      fieldKind
	confidence float64
}

// patterns is the fixed classification table. Order matters: within one
// (category, root cause, discriminator) combination the first match wins,
// so more specific patterns come first.
var patterns = []pattern{
	// Dependency errors.
	{regexp.MustCompile(`(?im)cannot find module '([^']+)'`), models.CategoryDependency, "missing_npm_module", fieldModule, 0.95},
	{regexp.MustCompile(`(?im)module not found: error: can't resolve '([^']+)'`), models.CategoryDependency, "webpack_unresolved_import", fieldModule, 0.95},
	{regexp.MustCompile(`(?im)failed to resolve import "([^"]+)"`), models.CategoryDependency, "vite_unresolved_import", fieldModule, 0.95},
	{regexp.MustCompile(`(?im)modulenotfounderror: no module named '([^']+)'`), models.CategoryDependency, "missing_python_module", fieldModule, 0.95},
	{regexp.MustCompile(`(?im)importerror: no module named '?([\w.]+)'?`), models.CategoryDependency, "missing_python_module", fieldModule, 0.9},
	{regexp.MustCompile(`(?im)npm err!.*404.*?'?([@\w/.-]+)'? is not in (?:this|the) registry`), models.CategoryDependency, "npm_package_not_found", fieldModule, 0.9},

	// File errors.
	{regexp.MustCompile(`(?im)enoent: no such file or directory,?\s*(?:open|stat|scandir|lstat)?\s*'([^']+)'`), models.CategoryFile, "file_not_found", fieldFile, 0.95},
	{regexp.MustCompile(`(?im)filenotfounderror: \[errno 2\] no such file or directory: '([^']+)'`), models.CategoryFile, "python_file_not_found", fieldFile, 0.95},
	{regexp.MustCompile(`(?im)could not (?:open|read|find) (?:file )?['"]([^'"]+)['"]`), models.CategoryFile, "file_unreadable", fieldFile, 0.7},

	// Command errors.
	{regexp.MustCompile(`(?im)(?:sh|bash|zsh): (?:line \d+: )?([\w@.+-]+): command not found`), models.CategoryCommand, "command_not_found", fieldCommand, 0.95},
	{regexp.MustCompile(`(?im)'([\w@.+-]+)' is not recognized as an internal or external command`), models.CategoryCommand, "command_not_found", fieldCommand, 0.95},
	{regexp.MustCompile(`(?im)^(?:/bin/sh: )?\s*([\w@.+-]+): not found$`), models.CategoryCommand, "command_not_found", fieldCommand, 0.8},

	// Port errors.
	{regexp.MustCompile(`(?im)eaddrinuse[^\d]*?(\d{2,5})`), models.CategoryPort, "port_in_use", fieldPort, 0.95},
	{regexp.MustCompile(`(?im)address already in use[^\d]*?(\d{2,5})`), models.CategoryPort, "address_in_use", fieldPort, 0.9},
	{regexp.MustCompile(`(?im)port (\d{2,5}) is (?:already )?in use`), models.CategoryPort, "port_in_use", fieldPort, 0.9},

	// Permission errors.
	{regexp.MustCompile(`(?im)eacces: permission denied,?\s*(?:open|mkdir|unlink|access)?\s*'([^']+)'`), models.CategoryPermission, "permission_denied", fieldFile, 0.95},
	{regexp.MustCompile(`(?im)permissionerror: \[errno 13\] permission denied: '([^']+)'`), models.CategoryPermission, "python_permission_denied", fieldFile, 0.95},
	{regexp.MustCompile(`(?im)permission denied(?:: )?([\w./-]*)`), models.CategoryPermission, "permission_denied", fieldFile, 0.6},

	// Environment errors.
	{regexp.MustCompile(`(?im)(?:environment variable|env var) ['"]?([A-Z][A-Z0-9_]*)['"]? (?:is )?(?:not set|missing|undefined)`), models.CategoryEnv, "missing_env_var", fieldEnvVar, 0.9},
	{regexp.MustCompile(`(?im)([A-Z][A-Z0-9_]{2,}) is not defined in (?:the )?(?:environment|\.env)`), models.CategoryEnv, "missing_env_var", fieldEnvVar, 0.85},

	// Syntax errors.
	{regexp.MustCompile(`(?im)indentationerror: .+`), models.CategorySyntax, "python_indentation_error", fieldNone, 0.9},
	{regexp.MustCompile(`(?im)syntaxerror: .+`), models.CategorySyntax, "syntax_error", fieldNone, 0.85},
	{regexp.MustCompile(`(?im)unexpected token`), models.CategorySyntax, "unexpected_token", fieldNone, 0.7},

	// Runtime errors.
	{regexp.MustCompile(`(?im)referenceerror: (\w+) is not defined`), models.CategoryRuntime, "reference_error", fieldNone, 0.85},
	{regexp.MustCompile(`(?im)nameerror: name '(\w+)' is not defined`), models.CategoryRuntime, "python_name_error", fieldNone, 0.85},
	{regexp.MustCompile(`(?im)typeerror: .+`), models.CategoryRuntime, "type_error", fieldNone, 0.8},
	{regexp.MustCompile(`(?im)unhandled(?:promise)?rejection`), models.CategoryRuntime, "unhandled_rejection", fieldNone, 0.7},
	{regexp.MustCompile(`(?im)traceback \(most recent call last\)`), models.CategoryRuntime, "python_exception", fieldNone, 0.5},
}

// priority is the fixed acting order for classified errors. Lower is acted
// on first.
var priority = map[models.ErrorCategory]int{
	models.CategoryDependency: 0,
	models.CategoryFile:       1,
	models.CategoryCommand:    2,
	models.CategoryPort:       3,
	models.CategoryPermission: 4,
	models.CategoryEnv:        5,
	models.CategorySyntax:     6,
	models.CategoryRuntime:    7,
	models.CategoryUnknown:    8,
}

// Classifier pattern-matches terminal output into TerminalErrors. It is
// stateless and safe for concurrent use.
type Classifier struct{}

// New returns a Classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify runs the pattern table over the full output and returns the
// deduplicated classified errors, in table order. An empty slice means the
// output is unclassifiable and must be escalated; it is never an error.
func (c *Classifier) Classify(output string) []models.TerminalError {
	if strings.TrimSpace(output) == "" {
		return nil
	}

	var result []models.TerminalError
	seen := make(map[string]bool)

	for _, p := range patterns {
		matches := p.re.FindAllStringSubmatch(output, -1)
		for _, m := range matches {
			e := models.TerminalError{
				Category:   p.category,
				RawError:   strings.TrimSpace(m[0]),
				RootCause:  p.rootCause,
				Confidence: p.confidence,
			}
			if len(m) > 1 {
				applyField(&e, p.field, strings.TrimSpace(m[1]))
			}

			key := string(e.Category) + "|" + e.RootCause + "|" + e.Discriminator()
			if seen[key] {
				continue
			}
			seen[key] = true
			result = append(result, e)
		}
	}

	return result
}

// applyField stores the captured value in the category-specific field.
func applyField(e *models.TerminalError, kind fieldKind, value string) {
	if value == "" {
		return
	}
	switch kind {
	case fieldModule:
		e.MissingModule = value
	case fieldFile:
		e.AffectedFile = value
	case fieldCommand:
		e.Command = value
	case fieldPort:
		if port, err := strconv.Atoi(value); err == nil {
			e.Port = port
		}
	case fieldEnvVar:
		// Env var names ride in the command field; there is no dedicated
		// slot and the fixer only needs the name.
		e.Command = value
	}
}

// PrimaryError selects the single error to act on first using the fixed
// category priority. Ties within a category are broken by slice order.
// Returns nil for an empty slice.
func PrimaryError(errors []models.TerminalError) *models.TerminalError {
	if len(errors) == 0 {
		return nil
	}

	best := 0
	for i := 1; i < len(errors); i++ {
		if priority[errors[i].Category] < priority[errors[best].Category] {
			best = i
		}
	}
	return &errors[best]
}
