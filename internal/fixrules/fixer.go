// Package fixrules derives deterministic remediations from classified
// terminal errors. Anything it cannot fix locally is flagged for AI
// escalation; it never mutates the error it is given.
package fixrules

import (
	"fmt"
	"strings"

	"github.com/bharatbuild/buildfix/internal/models"
)

// Package-name prefixes installed as dev dependencies.
var devDependencyPrefixes = []string{
	"tailwind",
	"postcss",
	"autoprefixer",
	"@types/",
	"typescript",
	"eslint",
	"prettier",
}

// Well-known toolchains with installation instructions. These are
// informational: installing a toolchain is an operator decision.
var toolchainInstructions = map[string]string{
	"node":    "Node.js is not installed. Install it from https://nodejs.org or via your package manager.",
	"npm":     "npm is not installed. It ships with Node.js; install Node.js first.",
	"npx":     "npx is not installed. It ships with npm 5.2+; update npm.",
	"python":  "Python is not installed. Install python3 via your package manager.",
	"python3": "Python 3 is not installed. Install python3 via your package manager.",
	"pip":     "pip is not installed. Install python3-pip via your package manager.",
	"docker":  "Docker is not installed. Install it from https://docs.docker.com/get-docker/.",
	"git":     "git is not installed. Install it via your package manager.",
	"curl":    "curl is not installed. Install it via your package manager.",
}

// Dev tools that are safe to install globally through npm.
var npmGlobalTools = []string{
	"vite",
	"next",
	"eslint",
	"prettier",
	"tsc",
	"nodemon",
	"serve",
	"pm2",
}

// Port fixes wrap back to this port once the proposal exceeds maxPort.
const (
	portWrapTarget = 3000
	maxPort        = 65000
)

// Fixer maps classified errors to deterministic fixes.
type Fixer struct{}

// New returns a rule-based Fixer.
func New() *Fixer {
	return &Fixer{}
}

// GetFix returns the deterministic fix for an error, or nil when no rule
// applies and the error must be escalated. A returned fix may itself carry
// RequiresAI when the rule can name the problem but not solve it.
func (f *Fixer) GetFix(e *models.TerminalError) *models.TerminalFix {
	if e == nil {
		return nil
	}

	switch e.Category {
	case models.CategoryDependency:
		return f.fixDependency(e)
	case models.CategoryPort:
		return f.fixPort(e)
	case models.CategoryCommand:
		return f.fixCommand(e)
	case models.CategoryPermission:
		return f.fixPermission(e)
	case models.CategoryFile:
		return f.fixFile(e)
	case models.CategoryEnv:
		return f.fixEnv(e)
	default:
		// syntax, runtime, unknown: no deterministic rule exists.
		return nil
	}
}

// fixDependency installs the missing module with the right package manager.
// Relative imports cannot be installed; they are missing project files.
func (f *Fixer) fixDependency(e *models.TerminalError) *models.TerminalFix {
	module := e.MissingModule
	if module == "" {
		return nil
	}

	if strings.HasPrefix(module, ".") || strings.HasPrefix(module, "/") {
		return &models.TerminalFix{
			Type:        models.FixTypeInfo,
			Description: fmt.Sprintf("%q is a relative import; the file is missing from the project and its content must be generated", module),
			RequiresAI:  true,
		}
	}

	if strings.Contains(e.RootCause, "python") {
		return &models.TerminalFix{
			Type:        models.FixTypeCommand,
			Command:     fmt.Sprintf("pip install %s", module),
			Description: fmt.Sprintf("install missing Python package %s", module),
		}
	}

	flag := "--save"
	if isDevDependency(module) {
		flag = "--save-dev"
	}
	return &models.TerminalFix{
		Type:        models.FixTypeCommand,
		Command:     fmt.Sprintf("npm install %s %s", module, flag),
		Description: fmt.Sprintf("install missing npm package %s", module),
	}
}

// fixPort proposes the next free-looking port. The proposal is advisory
// metadata; the caller decides whether to rewrite the run command.
func (f *Fixer) fixPort(e *models.TerminalError) *models.TerminalFix {
	if e.Port == 0 {
		return nil
	}

	newPort := e.Port + 1
	if newPort > maxPort {
		newPort = portWrapTarget
	}

	return &models.TerminalFix{
		Type:        models.FixTypePortChange,
		OldPort:     e.Port,
		NewPort:     newPort,
		Description: fmt.Sprintf("port %d is in use; run on port %d instead", e.Port, newPort),
	}
}

// fixCommand handles missing executables: a global npm install for known
// dev tools, install instructions for known toolchains, escalation for
// anything else.
func (f *Fixer) fixCommand(e *models.TerminalError) *models.TerminalFix {
	cmd := e.Command
	if cmd == "" {
		return nil
	}

	for _, tool := range npmGlobalTools {
		if cmd == tool {
			return &models.TerminalFix{
				Type:        models.FixTypeCommand,
				Command:     fmt.Sprintf("npm install -g %s", tool),
				Description: fmt.Sprintf("install %s globally", tool),
			}
		}
	}

	if instructions, ok := toolchainInstructions[cmd]; ok {
		return &models.TerminalFix{
			Type:        models.FixTypeInfo,
			Description: instructions,
		}
	}

	return &models.TerminalFix{
		Type:        models.FixTypeInfo,
		Description: fmt.Sprintf("command %q was not found and is not a known tool", cmd),
		RequiresAI:  true,
	}
}

// fixPermission makes the implicated file executable.
func (f *Fixer) fixPermission(e *models.TerminalError) *models.TerminalFix {
	if e.AffectedFile == "" {
		return &models.TerminalFix{
			Type:        models.FixTypeInfo,
			Description: "permission denied; check file ownership and mode in the sandbox",
		}
	}

	return &models.TerminalFix{
		Type:        models.FixTypeCommand,
		Command:     fmt.Sprintf("chmod +x %s", e.AffectedFile),
		Description: fmt.Sprintf("make %s executable", e.AffectedFile),
	}
}

// fixFile writes a literal template for the handful of config files whose
// content is well-known. Any other missing file needs generated content.
func (f *Fixer) fixFile(e *models.TerminalError) *models.TerminalFix {
	if e.AffectedFile == "" {
		return nil
	}

	name := baseName(e.AffectedFile)
	if content, ok := fileTemplates[name]; ok {
		return &models.TerminalFix{
			Type:        models.FixTypeFileEdit,
			FilePath:    e.AffectedFile,
			FileContent: content,
			Description: fmt.Sprintf("create %s from the standard template", name),
		}
	}

	return &models.TerminalFix{
		Type:        models.FixTypeInfo,
		Description: fmt.Sprintf("%s is missing and its content cannot be fabricated safely", e.AffectedFile),
		RequiresAI:  true,
	}
}

// fixEnv is always informational: setting process env vars from a fix
// object is not safe.
func (f *Fixer) fixEnv(e *models.TerminalError) *models.TerminalFix {
	name := e.Command
	desc := "a required environment variable is not set; add it to the project's .env"
	if name != "" {
		desc = fmt.Sprintf("environment variable %s is not set; add it to the project's .env", name)
	}
	return &models.TerminalFix{
		Type:        models.FixTypeInfo,
		Description: desc,
	}
}

// isDevDependency reports whether the package name matches a known
// dev-tool prefix.
func isDevDependency(module string) bool {
	for _, prefix := range devDependencyPrefixes {
		if strings.HasPrefix(module, prefix) {
			return true
		}
	}
	return false
}

// baseName returns the final path element without importing path/filepath
// semantics for Windows-style separators in error text.
func baseName(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
