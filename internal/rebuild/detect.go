package rebuild

import (
	"regexp"
	"strings"

	"github.com/bharatbuild/buildfix/internal/models"
)

// typeGroup binds an error type to its discriminating patterns. Groups are
// tested in order; the first group with at least one matching pattern wins.
type typeGroup struct {
	typ      models.ErrorType
	patterns []*regexp.Regexp
}

// Detection confidence: a group with a single discriminating pattern is
// more certain than one that needs several looser patterns.
const (
	confidenceSinglePattern = 0.9
	confidenceMultiPattern  = 0.8
	confidenceErrorKeyword  = 0.3
	confidenceFailedKeyword = 0.2
)

var typeGroups = []typeGroup{
	{models.ErrorTypeNodeModuleNotFound, []*regexp.Regexp{
		regexp.MustCompile(`(?i)cannot find module '[^']+'`),
	}},
	{models.ErrorTypePythonModuleNotFound, []*regexp.Regexp{
		regexp.MustCompile(`(?i)modulenotfounderror: no module named`),
	}},
	{models.ErrorTypePythonIndentation, []*regexp.Regexp{
		regexp.MustCompile(`(?i)indentationerror:`),
	}},
	{models.ErrorTypePythonName, []*regexp.Regexp{
		regexp.MustCompile(`(?i)nameerror: name '\w+' is not defined`),
	}},
	{models.ErrorTypePythonSyntax, []*regexp.Regexp{
		regexp.MustCompile(`(?i)syntaxerror: invalid syntax`),
		regexp.MustCompile(`(?i)syntaxerror: unexpected eof`),
		regexp.MustCompile(`(?im)^  file "[^"]+", line \d+`),
	}},
	{models.ErrorTypeNodeSyntax, []*regexp.Regexp{
		regexp.MustCompile(`(?i)syntaxerror: unexpected token`),
		regexp.MustCompile(`(?i)syntaxerror: unexpected identifier`),
		regexp.MustCompile(`(?i)syntaxerror: cannot use import statement`),
		regexp.MustCompile(`(?i)syntaxerror: missing \)`),
	}},
	{models.ErrorTypeNodeReference, []*regexp.Regexp{
		regexp.MustCompile(`(?i)referenceerror: \w+ is not defined`),
	}},
	{models.ErrorTypeNodeType, []*regexp.Regexp{
		regexp.MustCompile(`(?i)typeerror: cannot read propert`),
		regexp.MustCompile(`(?i)typeerror: .+ is not a function`),
		regexp.MustCompile(`(?i)typeerror: cannot destructure`),
	}},
	{models.ErrorTypeTypeScript, []*regexp.Regexp{
		regexp.MustCompile(`error TS\d{4,5}:`),
		regexp.MustCompile(`(?i)type '.+' is not assignable to type`),
	}},
	{models.ErrorTypeVite, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\[vite\]`),
		regexp.MustCompile(`(?i)failed to resolve import`),
		regexp.MustCompile(`(?i)\[plugin:vite`),
	}},
	{models.ErrorTypeWebpack, []*regexp.Regexp{
		regexp.MustCompile(`(?i)module not found: error: can't resolve`),
		regexp.MustCompile(`(?i)webpack compiled with \d+ error`),
		regexp.MustCompile(`(?i)module build failed`),
	}},
	{models.ErrorTypeReact, []*regexp.Regexp{
		regexp.MustCompile(`(?i)invalid hook call`),
		regexp.MustCompile(`(?i)objects are not valid as a react child`),
		regexp.MustCompile(`(?i)rendered more hooks than during the previous render`),
	}},
	{models.ErrorTypeNextJS, []*regexp.Regexp{
		regexp.MustCompile(`(?i)error occurred prerendering page`),
		regexp.MustCompile(`(?i)getserversideprops`),
		regexp.MustCompile(`(?i)hydration failed`),
	}},
	{models.ErrorTypeNPM, []*regexp.Regexp{
		regexp.MustCompile(`npm ERR!`),
	}},
	{models.ErrorTypeFileNotFound, []*regexp.Regexp{
		regexp.MustCompile(`(?i)enoent: no such file or directory`),
		regexp.MustCompile(`(?i)filenotfounderror: \[errno 2\]`),
	}},
	{models.ErrorTypePermissionDenied, []*regexp.Regexp{
		regexp.MustCompile(`(?i)eacces: permission denied`),
		regexp.MustCompile(`(?i)permissionerror: \[errno 13\]`),
		regexp.MustCompile(`(?i)permission denied`),
	}},
	{models.ErrorTypePortInUse, []*regexp.Regexp{
		regexp.MustCompile(`(?i)eaddrinuse`),
		regexp.MustCompile(`(?i)address already in use`),
	}},
}

// detectType finds the technology-specific error type for a raw log and a
// detection confidence. Logs that match no group degrade to a keyword
// heuristic and finally to a zero-confidence generic error.
func detectType(raw string) (models.ErrorType, float64) {
	for _, g := range typeGroups {
		for _, p := range g.patterns {
			if p.MatchString(raw) {
				if len(g.patterns) == 1 {
					return g.typ, confidenceSinglePattern
				}
				return g.typ, confidenceMultiPattern
			}
		}
	}

	lower := strings.ToLower(raw)
	if strings.Contains(lower, "error") {
		return models.ErrorTypeGeneric, confidenceErrorKeyword
	}
	if strings.Contains(lower, "failed") {
		return models.ErrorTypeGeneric, confidenceFailedKeyword
	}
	return models.ErrorTypeGeneric, 0.0
}
