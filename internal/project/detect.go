// Package project inspects a project directory: which language and
// framework it runs, and which files matter when an error needs fixing.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/bharatbuild/buildfix/internal/models"
)

// packageJSON is the subset of package.json we care about.
type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Scripts         map[string]string `json:"scripts"`
}

// DetectEnvironment inspects the project root and reports language,
// framework, and the framework's default dev port. Detection is
// best-effort: unreadable or malformed manifests degrade to the generic
// answer rather than failing.
func DetectEnvironment(root string) models.Environment {
	env := models.Environment{
		Language:    models.LanguageUnknown,
		Framework:   models.FrameworkGeneric,
		DefaultPort: 3000,
	}

	if _, err := os.Stat(filepath.Join(root, "Dockerfile")); err == nil {
		env.HasDocker = true
	}
	for _, name := range []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"} {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			env.HasCompose = true
			break
		}
	}

	if data, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
		env.Language = models.LanguageNode
		env.Framework, env.DefaultPort = detectNodeFramework(data)
		return env
	}

	if data, err := os.ReadFile(filepath.Join(root, "requirements.txt")); err == nil {
		env.Language = models.LanguagePython
		env.Framework, env.DefaultPort = detectPythonFramework(string(data))
		return env
	}

	// pyproject-only projects still count as python.
	if _, err := os.Stat(filepath.Join(root, "pyproject.toml")); err == nil {
		env.Language = models.LanguagePython
		env.Framework = models.FrameworkGeneric
		env.DefaultPort = 8000
	}
	return env
}

func detectNodeFramework(data []byte) (models.Framework, int) {
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return models.FrameworkGeneric, 3000
	}

	has := func(name string) bool {
		if _, ok := pkg.Dependencies[name]; ok {
			return true
		}
		_, ok := pkg.DevDependencies[name]
		return ok
	}

	switch {
	case has("next"):
		return models.FrameworkNextJS, 3000
	case has("vite"):
		return models.FrameworkVite, 5173
	case has("react"):
		return models.FrameworkReact, 3000
	default:
		return models.FrameworkGeneric, 3000
	}
}

func detectPythonFramework(requirements string) (models.Framework, int) {
	lower := strings.ToLower(requirements)
	hasReq := func(name string) bool {
		for _, line := range strings.Split(lower, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			// strip version specifiers
			for _, sep := range []string{"==", ">=", "<=", "~=", ">", "<", "["} {
				if i := strings.Index(line, sep); i >= 0 {
					line = line[:i]
				}
			}
			if strings.TrimSpace(line) == name {
				return true
			}
		}
		return false
	}

	switch {
	case hasReq("fastapi"):
		return models.FrameworkFastAPI, 8000
	case hasReq("django"):
		return models.FrameworkDjango, 8000
	case hasReq("flask"):
		return models.FrameworkFlask, 5000
	default:
		return models.FrameworkGeneric, 8000
	}
}
