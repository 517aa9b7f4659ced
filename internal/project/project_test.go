package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bharatbuild/buildfix/internal/models"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDetectEnvironment(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		language  models.Language
		framework models.Framework
		port      int
		docker    bool
		compose   bool
	}{
		{
			name:      "vite project",
			files:     map[string]string{"package.json": `{"devDependencies":{"vite":"^5.0.0"},"dependencies":{"react":"^18.0.0"}}`},
			language:  models.LanguageNode,
			framework: models.FrameworkVite,
			port:      5173,
		},
		{
			name:      "nextjs wins over react",
			files:     map[string]string{"package.json": `{"dependencies":{"next":"14.0.0","react":"^18.0.0"}}`},
			language:  models.LanguageNode,
			framework: models.FrameworkNextJS,
			port:      3000,
		},
		{
			name:      "plain react",
			files:     map[string]string{"package.json": `{"dependencies":{"react":"^18.0.0"}}`},
			language:  models.LanguageNode,
			framework: models.FrameworkReact,
			port:      3000,
		},
		{
			name:      "malformed package.json degrades to generic node",
			files:     map[string]string{"package.json": `{not json`},
			language:  models.LanguageNode,
			framework: models.FrameworkGeneric,
			port:      3000,
		},
		{
			name:      "fastapi",
			files:     map[string]string{"requirements.txt": "fastapi==0.110.0\nuvicorn[standard]>=0.27\n"},
			language:  models.LanguagePython,
			framework: models.FrameworkFastAPI,
			port:      8000,
		},
		{
			name:      "flask with comment lines",
			files:     map[string]string{"requirements.txt": "# web\nflask>=3.0\nrequests\n"},
			language:  models.LanguagePython,
			framework: models.FrameworkFlask,
			port:      5000,
		},
		{
			name:      "django",
			files:     map[string]string{"requirements.txt": "Django==5.0\n"},
			language:  models.LanguagePython,
			framework: models.FrameworkDjango,
			port:      8000,
		},
		{
			name: "docker and compose flags",
			files: map[string]string{
				"package.json":       `{"dependencies":{"react":"*"}}`,
				"Dockerfile":         "FROM node:20\n",
				"docker-compose.yml": "services: {}\n",
			},
			language:  models.LanguageNode,
			framework: models.FrameworkReact,
			port:      3000,
			docker:    true,
			compose:   true,
		},
		{
			name:      "empty directory",
			files:     map[string]string{},
			language:  models.LanguageUnknown,
			framework: models.FrameworkGeneric,
			port:      3000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for rel, content := range tt.files {
				writeFile(t, root, rel, content)
			}

			env := DetectEnvironment(root)
			if env.Language != tt.language {
				t.Errorf("Language = %s, want %s", env.Language, tt.language)
			}
			if env.Framework != tt.framework {
				t.Errorf("Framework = %s, want %s", env.Framework, tt.framework)
			}
			if env.DefaultPort != tt.port {
				t.Errorf("DefaultPort = %d, want %d", env.DefaultPort, tt.port)
			}
			if env.HasDocker != tt.docker {
				t.Errorf("HasDocker = %v, want %v", env.HasDocker, tt.docker)
			}
			if env.HasCompose != tt.compose {
				t.Errorf("HasCompose = %v, want %v", env.HasCompose, tt.compose)
			}
		})
	}
}

func TestCollectFileContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{"dependencies":{"react":"*"}}`)
	writeFile(t, root, "src/App.jsx", "export default function App() {}\n")
	writeFile(t, root, "src/components/Header.jsx", "export function Header() {}\n")
	writeFile(t, root, "node_modules/react/index.js", "module.exports = {}\n")

	files := CollectFileContext(root, []string{"src/components/Header.jsx", "src/missing.jsx"})

	byPath := make(map[string]models.FileContext)
	for _, f := range files {
		byPath[f.Path] = f
	}

	for _, want := range []string{"package.json", "src/App.jsx", "src/components/Header.jsx"} {
		if _, ok := byPath[want]; !ok {
			t.Errorf("missing %s, got %v", want, paths(files))
		}
	}
	if _, ok := byPath["src/missing.jsx"]; ok {
		t.Error("nonexistent error file included")
	}
	for p := range byPath {
		if strings.Contains(p, "node_modules") {
			t.Errorf("vendored file included: %s", p)
		}
	}
}

func TestCollectFileContext_Truncation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", strings.Repeat("x", maxConfigFileBytes+100))
	writeFile(t, root, "main.py", strings.Repeat("y", maxSourceFileBytes+100))

	files := CollectFileContext(root, nil)
	for _, f := range files {
		switch f.Path {
		case "package.json":
			if !f.Truncated || len(f.Content) != maxConfigFileBytes {
				t.Errorf("package.json: truncated=%v len=%d", f.Truncated, len(f.Content))
			}
		case "main.py":
			if !f.Truncated || len(f.Content) != maxSourceFileBytes {
				t.Errorf("main.py: truncated=%v len=%d", f.Truncated, len(f.Content))
			}
		}
	}
}

func TestCollectFileContext_NoDuplicates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", "{}")

	files := CollectFileContext(root, []string{"package.json", "./package.json"})
	count := 0
	for _, f := range files {
		if f.Path == "package.json" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("package.json appears %d times", count)
	}
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"node_modules/react/index.js", true},
		{"packages/app/node_modules/x/y.js", true},
		{"dist/bundle.js", true},
		{"__pycache__/mod.pyc", true},
		{"src/App.jsx", false},
		{"main.py", false},
	}
	for _, tt := range tests {
		if got := Excluded(tt.path); got != tt.want {
			t.Errorf("Excluded(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func paths(files []models.FileContext) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
