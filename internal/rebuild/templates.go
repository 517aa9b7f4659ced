package rebuild

import (
	"strconv"
	"strings"

	"github.com/bharatbuild/buildfix/internal/models"
)

// Per-type stack templates. Placeholders: {message} {file} {line} {column}
// {module} {port}. Fields missing from the raw log fall back to generic
// defaults so a template never renders with a hole in it.
var stackTemplates = map[models.ErrorType]string{
	models.ErrorTypeNodeModuleNotFound: `Error: Cannot find module '{module}'
Require stack:
- {file}
    at Function.Module._resolveFilename (node:internal/modules/cjs/loader:1145:15)
    at Function.Module._load (node:internal/modules/cjs/loader:986:27)
    at Module.require (node:internal/modules/cjs/loader:1233:19)
    at require (node:internal/modules/helpers:179:18)
    at Object.<anonymous> ({file}:{line}:{column})

Suggested fix: npm install {module}`,

	models.ErrorTypeNodeSyntax: `{file}:{line}
SyntaxError: {message}
    at internalCompileFunction (node:internal/vm:73:18)
    at wrapSafe (node:internal/modules/cjs/loader:1178:20)
    at Module._compile (node:internal/modules/cjs/loader:1220:27)
    at Object.<anonymous> ({file}:{line}:{column})`,

	models.ErrorTypeNodeType: `TypeError: {message}
    at Object.<anonymous> ({file}:{line}:{column})
    at Module._compile (node:internal/modules/cjs/loader:1256:14)
    at Module._load (node:internal/modules/cjs/loader:986:27)
    at node:internal/main/run_main_module:23:47`,

	models.ErrorTypeNodeReference: `ReferenceError: {message}
    at Object.<anonymous> ({file}:{line}:{column})
    at Module._compile (node:internal/modules/cjs/loader:1256:14)
    at Module._load (node:internal/modules/cjs/loader:986:27)
    at node:internal/main/run_main_module:23:47`,

	models.ErrorTypeTypeScript: `{file}({line},{column}): error TS2304: {message}

Found 1 error in {file}:{line}`,

	models.ErrorTypeVite: `[vite] Internal server error: {message}
  Plugin: vite:import-analysis
  File: {file}:{line}:{column}
  Failed to resolve import "{module}" from "{file}". Does the file exist?`,

	models.ErrorTypeWebpack: `ERROR in {file} {line}:{column}
Module not found: Error: Can't resolve '{module}' in '{file}'

webpack compiled with 1 error`,

	models.ErrorTypePythonModuleNotFound: `Traceback (most recent call last):
  File "{file}", line {line}, in <module>
    import {module}
ModuleNotFoundError: No module named '{module}'

Suggested fix: pip install {module}`,

	models.ErrorTypePythonSyntax: `Traceback (most recent call last):
  File "{file}", line {line}
    {message}
         ^
SyntaxError: invalid syntax`,

	models.ErrorTypePythonName: `Traceback (most recent call last):
  File "{file}", line {line}, in <module>
NameError: {message}`,

	models.ErrorTypePythonIndentation: `Traceback (most recent call last):
  File "{file}", line {line}
    {message}
IndentationError: unexpected indent`,

	models.ErrorTypeNPM: `npm ERR! code 1
npm ERR! {message}
npm ERR!
npm ERR! A complete log of this run can be found in: ~/.npm/_logs/

Suggested fix: check package.json and retry npm install`,

	models.ErrorTypeFileNotFound: `Error: ENOENT: no such file or directory, open '{file}'
    at Object.openSync (node:fs:596:3)
    at Object.readFileSync (node:fs:464:35)
    at Object.<anonymous> ({file}:{line}:{column})`,

	models.ErrorTypePermissionDenied: `Error: EACCES: permission denied, open '{file}'
    at Object.openSync (node:fs:596:3)
    at Object.<anonymous> ({file}:{line}:{column})

Suggested fix: chmod +x {file}`,

	models.ErrorTypePortInUse: `Error: listen EADDRINUSE: address already in use :::{port}
    at Server.setupListenHandle [as _listen2] (node:net:1811:16)
    at listenInCluster (node:net:1859:12)
    at Server.listen (node:net:1947:7)
Emitted 'error' event on Server instance at:
    at emitErrorNT (node:net:1838:8)

Suggested fix: stop the process using port {port} or run on a different port`,
}

// Defaults substituted when the raw log yielded no value for a field.
const (
	defaultFile   = "unknown_file"
	defaultLine   = 1
	defaultColumn = 1
	defaultModule = "unknown-module"
	defaultPort   = 3000
)

// renderTemplate substitutes the extracted fields into the template for
// the given type, falling back to the defaults. Returns false when the
// type has no registered template.
func renderTemplate(typ models.ErrorType, message string, e extracted) (string, bool) {
	tmpl, ok := stackTemplates[typ]
	if !ok {
		return "", false
	}

	file := e.file
	if file == "" {
		file = defaultFile
	}
	line := e.line
	if line == 0 {
		line = defaultLine
	}
	column := e.column
	if column == 0 {
		column = defaultColumn
	}
	module := e.module
	if module == "" {
		module = defaultModule
	}
	port := e.port
	if port == 0 {
		port = defaultPort
	}

	r := strings.NewReplacer(
		"{message}", message,
		"{file}", file,
		"{line}", strconv.Itoa(line),
		"{column}", strconv.Itoa(column),
		"{module}", module,
		"{port}", strconv.Itoa(port),
	)
	return r.Replace(tmpl), true
}
