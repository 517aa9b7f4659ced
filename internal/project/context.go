package project

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/bharatbuild/buildfix/internal/models"
)

const (
	maxConfigFileBytes = 10 * 1024
	maxSourceFileBytes = 5 * 1024
)

// configFileGlobs are the config files always worth sending, matched
// against the project root.
var configFileGlobs = []string{
	"Dockerfile",
	"docker-compose.{yml,yaml}",
	"compose.{yml,yaml}",
	"package.json",
	"requirements.txt",
	"pyproject.toml",
	"tsconfig*.json",
	"vite.config.{js,ts,mjs}",
	"next.config.{js,mjs,ts}",
	"webpack.config.js",
}

// entryFileGlobs are the likely application entry points, searched one
// level into src/ and app/ as well as the root.
var entryFileGlobs = []string{
	"{main,index,app,server}.{js,jsx,ts,tsx,py}",
	"App.{js,jsx,ts,tsx}",
	"{src,app}/{main,index,app,server}.{js,jsx,ts,tsx,py}",
	"{src,app}/App.{js,jsx,ts,tsx}",
	"manage.py",
}

// excludedDirGlobs are never read or reported, whatever referenced them.
var excludedDirGlobs = []string{
	"node_modules/**",
	"**/node_modules/**",
	".git/**",
	"dist/**",
	"build/**",
	".next/**",
	"__pycache__/**",
	"**/__pycache__/**",
	".venv/**",
	"venv/**",
}

// Excluded reports whether the project-relative path sits inside a
// vendored or generated directory.
func Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range excludedDirGlobs {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// CollectFileContext reads the config files, likely entry points, and
// errorFiles (project-relative paths referenced by recent errors) from
// root. Config files are capped at 10KB, source files at 5KB; files that
// do not exist are skipped silently. Paths in the result are
// project-relative with forward slashes.
func CollectFileContext(root string, errorFiles []string) []models.FileContext {
	var out []models.FileContext
	seen := make(map[string]bool)

	add := func(rel string, limit int) {
		rel = filepath.ToSlash(filepath.Clean(rel))
		if rel == "." || seen[rel] || Excluded(rel) {
			return
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return
		}
		seen[rel] = true

		fc := models.FileContext{Path: rel, Content: string(data)}
		if len(fc.Content) > limit {
			fc.Content = fc.Content[:limit]
			fc.Truncated = true
		}
		out = append(out, fc)
	}

	collect := func(globs []string, limit int) {
		for _, pattern := range globs {
			matches, err := doublestar.Glob(os.DirFS(root), pattern)
			if err != nil {
				continue
			}
			for _, m := range matches {
				add(m, limit)
			}
		}
	}

	collect(configFileGlobs, maxConfigFileBytes)
	collect(entryFileGlobs, maxSourceFileBytes)

	for _, f := range errorFiles {
		rel := f
		if filepath.IsAbs(rel) {
			r, err := filepath.Rel(root, rel)
			if err != nil || strings.HasPrefix(r, "..") {
				continue
			}
			rel = r
		}
		add(rel, maxSourceFileBytes)
	}
	return out
}
