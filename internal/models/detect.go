package models

// ErrorType is the technology-specific error kind detected from raw log
// text by the rebuilder.
type ErrorType string

const (
	// Node.js runtime errors.
	ErrorTypeNodeModuleNotFound ErrorType = "node_module_not_found"
	ErrorTypeNodeSyntax         ErrorType = "node_syntax_error"
	ErrorTypeNodeType           ErrorType = "node_type_error"
	ErrorTypeNodeReference      ErrorType = "node_reference_error"

	// TypeScript compiler errors.
	ErrorTypeTypeScript ErrorType = "typescript_error"

	// Bundler errors.
	ErrorTypeVite    ErrorType = "vite_error"
	ErrorTypeWebpack ErrorType = "webpack_error"

	// Framework errors.
	ErrorTypeReact  ErrorType = "react_error"
	ErrorTypeNextJS ErrorType = "nextjs_error"

	// Python errors.
	ErrorTypePythonModuleNotFound ErrorType = "python_module_not_found"
	ErrorTypePythonSyntax         ErrorType = "python_syntax_error"
	ErrorTypePythonName           ErrorType = "python_name_error"
	ErrorTypePythonIndentation    ErrorType = "python_indentation_error"

	// Package manager errors.
	ErrorTypeNPM ErrorType = "npm_error"

	// System-level errors.
	ErrorTypeFileNotFound     ErrorType = "file_not_found"
	ErrorTypePermissionDenied ErrorType = "permission_denied"
	ErrorTypePortInUse        ErrorType = "port_in_use"

	// ErrorTypeGeneric is the fallback when no pattern matched.
	ErrorTypeGeneric ErrorType = "generic_error"
)

// DetectedError is the rebuilder's view of a single raw log: the detected
// type, extracted position fields, and the reconstructed log text.
// Confidence reflects how certain the detection and reconstruction are and
// must be surfaced to any downstream consumer.
type DetectedError struct {
	Type        ErrorType `json:"error_type"`
	Message     string    `json:"message"`
	File        string    `json:"file,omitempty"`
	Line        int       `json:"line,omitempty"`
	Column      int       `json:"column,omitempty"`
	Module      string    `json:"module,omitempty"`
	OriginalLog string    `json:"original_log"`
	RebuiltLog  string    `json:"rebuilt_log"`
	Confidence  float64   `json:"confidence"`
}
