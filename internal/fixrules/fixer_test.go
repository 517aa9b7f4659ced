package fixrules

import (
	"strings"
	"testing"

	"github.com/bharatbuild/buildfix/internal/models"
)

func TestGetFix_NpmDependency(t *testing.T) {
	f := New()

	fix := f.GetFix(&models.TerminalError{
		Category:      models.CategoryDependency,
		RootCause:     "missing_npm_module",
		MissingModule: "lodash",
	})

	if fix == nil {
		t.Fatal("GetFix returned nil")
	}
	if fix.Type != models.FixTypeCommand {
		t.Errorf("Type = %q, want %q", fix.Type, models.FixTypeCommand)
	}
	if fix.Command != "npm install lodash --save" {
		t.Errorf("Command = %q, want %q", fix.Command, "npm install lodash --save")
	}
	if fix.RequiresAI {
		t.Error("RequiresAI = true, want false")
	}
}

func TestGetFix_DevDependency(t *testing.T) {
	f := New()

	tests := []string{"tailwindcss", "postcss", "@types/node", "typescript", "eslint-plugin-react", "prettier"}
	for _, module := range tests {
		fix := f.GetFix(&models.TerminalError{
			Category:      models.CategoryDependency,
			RootCause:     "missing_npm_module",
			MissingModule: module,
		})
		if fix == nil {
			t.Fatalf("GetFix(%q) returned nil", module)
		}
		if !strings.HasSuffix(fix.Command, "--save-dev") {
			t.Errorf("GetFix(%q).Command = %q, want --save-dev suffix", module, fix.Command)
		}
	}
}

func TestGetFix_PythonDependency(t *testing.T) {
	f := New()

	fix := f.GetFix(&models.TerminalError{
		Category:      models.CategoryDependency,
		RootCause:     "missing_python_module",
		MissingModule: "flask",
	})

	if fix == nil {
		t.Fatal("GetFix returned nil")
	}
	if fix.Command != "pip install flask" {
		t.Errorf("Command = %q, want %q", fix.Command, "pip install flask")
	}
}

func TestGetFix_RelativeImportEscalates(t *testing.T) {
	f := New()

	for _, module := range []string{"./components/App", "/src/utils"} {
		fix := f.GetFix(&models.TerminalError{
			Category:      models.CategoryDependency,
			RootCause:     "missing_npm_module",
			MissingModule: module,
		})
		if fix == nil {
			t.Fatalf("GetFix(%q) returned nil", module)
		}
		if !fix.RequiresAI {
			t.Errorf("GetFix(%q).RequiresAI = false, want true", module)
		}
		if fix.Command != "" {
			t.Errorf("GetFix(%q) proposed a command for a relative import", module)
		}
	}
}

func TestGetFix_PortProposal(t *testing.T) {
	f := New()

	fix := f.GetFix(&models.TerminalError{
		Category:  models.CategoryPort,
		RootCause: "port_in_use",
		Port:      3000,
	})

	if fix == nil {
		t.Fatal("GetFix returned nil")
	}
	if fix.Type != models.FixTypePortChange {
		t.Errorf("Type = %q, want %q", fix.Type, models.FixTypePortChange)
	}
	if fix.NewPort != 3001 {
		t.Errorf("NewPort = %d, want 3001", fix.NewPort)
	}
}

func TestGetFix_PortWrapsAboveMax(t *testing.T) {
	f := New()

	fix := f.GetFix(&models.TerminalError{
		Category: models.CategoryPort,
		Port:     65001,
	})
	if fix.NewPort != 3000 {
		t.Errorf("NewPort = %d, want 3000", fix.NewPort)
	}
}

func TestGetFix_CommandKnownTool(t *testing.T) {
	f := New()

	fix := f.GetFix(&models.TerminalError{
		Category: models.CategoryCommand,
		Command:  "vite",
	})
	if fix == nil {
		t.Fatal("GetFix returned nil")
	}
	if fix.Command != "npm install -g vite" {
		t.Errorf("Command = %q, want npm install -g vite", fix.Command)
	}
}

func TestGetFix_CommandToolchainInfo(t *testing.T) {
	f := New()

	fix := f.GetFix(&models.TerminalError{
		Category: models.CategoryCommand,
		Command:  "docker",
	})
	if fix == nil {
		t.Fatal("GetFix returned nil")
	}
	if fix.Type != models.FixTypeInfo {
		t.Errorf("Type = %q, want %q", fix.Type, models.FixTypeInfo)
	}
	if fix.RequiresAI {
		t.Error("known toolchain should not escalate")
	}
}

func TestGetFix_UnknownCommandEscalates(t *testing.T) {
	f := New()

	fix := f.GetFix(&models.TerminalError{
		Category: models.CategoryCommand,
		Command:  "frobnicate",
	})
	if fix == nil || !fix.RequiresAI {
		t.Errorf("unknown command should escalate, got %+v", fix)
	}
}

func TestGetFix_Permission(t *testing.T) {
	f := New()

	fix := f.GetFix(&models.TerminalError{
		Category:     models.CategoryPermission,
		AffectedFile: "/app/run.sh",
	})
	if fix == nil {
		t.Fatal("GetFix returned nil")
	}
	if fix.Command != "chmod +x /app/run.sh" {
		t.Errorf("Command = %q, want chmod +x /app/run.sh", fix.Command)
	}
}

func TestGetFix_KnownFileTemplate(t *testing.T) {
	f := New()

	fix := f.GetFix(&models.TerminalError{
		Category:     models.CategoryFile,
		AffectedFile: "/app/tsconfig.node.json",
	})
	if fix == nil {
		t.Fatal("GetFix returned nil")
	}
	if fix.Type != models.FixTypeFileEdit {
		t.Errorf("Type = %q, want %q", fix.Type, models.FixTypeFileEdit)
	}
	if fix.FilePath != "/app/tsconfig.node.json" {
		t.Errorf("FilePath = %q", fix.FilePath)
	}
	if !strings.Contains(fix.FileContent, "compilerOptions") {
		t.Error("FileContent does not look like a tsconfig")
	}
}

func TestGetFix_UnknownFileEscalates(t *testing.T) {
	f := New()

	fix := f.GetFix(&models.TerminalError{
		Category:     models.CategoryFile,
		AffectedFile: "/app/src/routes.js",
	})
	if fix == nil || !fix.RequiresAI {
		t.Errorf("unknown file should escalate, got %+v", fix)
	}
}

func TestGetFix_UnhandledCategoriesReturnNil(t *testing.T) {
	f := New()

	for _, cat := range []models.ErrorCategory{models.CategorySyntax, models.CategoryRuntime, models.CategoryUnknown} {
		fix := f.GetFix(&models.TerminalError{Category: cat, RawError: "boom"})
		if fix != nil {
			t.Errorf("GetFix(%q) = %+v, want nil", cat, fix)
		}
	}
}

func TestGetFix_DoesNotMutateError(t *testing.T) {
	f := New()

	e := models.TerminalError{
		Category:      models.CategoryDependency,
		RootCause:     "missing_npm_module",
		MissingModule: "axios",
		Confidence:    0.95,
	}
	snapshot := e

	f.GetFix(&e)
	if e != snapshot {
		t.Errorf("GetFix mutated the error: %+v != %+v", e, snapshot)
	}
}
