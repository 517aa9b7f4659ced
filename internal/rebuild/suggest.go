package rebuild

import (
	"fmt"

	"github.com/bharatbuild/buildfix/internal/models"
)

// FixSuggestion pairs a detected error type with a human-readable fix
// suggestion and, where one exists, an executable shell command.
type FixSuggestion struct {
	Type       models.ErrorType `json:"error_type"`
	Suggestion string           `json:"suggestion"`
	Command    string           `json:"command,omitempty"`
	Confidence float64          `json:"confidence"`
}

// Canned suggestions per error type.
var suggestions = map[models.ErrorType]string{
	models.ErrorTypeNodeModuleNotFound:    "A Node.js dependency is missing. Install it and restart the dev server.",
	models.ErrorTypeNodeSyntax:            "There is a JavaScript syntax error. Check the reported file and line.",
	models.ErrorTypeNodeType:              "A value is undefined or has the wrong shape at runtime. Check the reported property access.",
	models.ErrorTypeNodeReference:         "An identifier is used before it is defined or imported.",
	models.ErrorTypeTypeScript:            "The TypeScript compiler rejected the code. Fix the reported type error.",
	models.ErrorTypeVite:                  "Vite failed to process the project. Usually an unresolved import or plugin misconfiguration.",
	models.ErrorTypeWebpack:               "Webpack could not resolve a module. Check the import path and installed packages.",
	models.ErrorTypeReact:                 "React reported a rendering problem. Check hook usage and rendered values.",
	models.ErrorTypeNextJS:                "Next.js failed while rendering. Check data fetching and server/client boundaries.",
	models.ErrorTypePythonModuleNotFound:  "A Python package is missing. Install it into the project environment.",
	models.ErrorTypePythonSyntax:          "There is a Python syntax error. Check the reported file and line.",
	models.ErrorTypePythonName:            "A Python name is used before assignment or import.",
	models.ErrorTypePythonIndentation:     "Python indentation is inconsistent. Re-indent the reported block.",
	models.ErrorTypeNPM:                   "npm failed. Check package.json and the npm error output.",
	models.ErrorTypeFileNotFound:          "A required file is missing. Create it or fix the path.",
	models.ErrorTypePermissionDenied:      "The process lacks permission for a file. Adjust file permissions.",
	models.ErrorTypePortInUse:             "The port is taken by another process. Stop it or use a different port.",
	models.ErrorTypeGeneric:               "No specific pattern matched. Read the full output to diagnose.",
}

// DetectAndSuggestFix detects the log's error type and returns a canned
// suggestion, with an executable command for the types where one is safe
// to propose.
func (r *Rebuilder) DetectAndSuggestFix(rawLog string) FixSuggestion {
	typ, confidence := detectType(rawLog)
	fields := extractFields(rawLog)

	s := FixSuggestion{
		Type:       typ,
		Suggestion: suggestions[typ],
		Confidence: confidence,
	}

	switch typ {
	case models.ErrorTypeNodeModuleNotFound:
		if fields.module != "" {
			s.Command = fmt.Sprintf("npm install %s", fields.module)
		}
	case models.ErrorTypePythonModuleNotFound:
		if fields.module != "" {
			s.Command = fmt.Sprintf("pip install %s", fields.module)
		}
	case models.ErrorTypeNPM:
		s.Command = "npm install"
	case models.ErrorTypePermissionDenied:
		if fields.file != "" {
			s.Command = fmt.Sprintf("chmod +x %s", fields.file)
		}
	case models.ErrorTypePortInUse:
		if fields.port != 0 {
			s.Command = fmt.Sprintf("lsof -ti :%d | xargs kill", fields.port)
		}
	}

	return s
}
