package classify

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genErrorLine generates raw error lines that the classifier recognizes.
func genErrorLine() gopter.Gen {
	moduleName := gen.RegexMatch(`[a-z][a-z0-9-]{1,15}`)
	return gen.OneGenOf(
		moduleName.Map(func(m string) string {
			return fmt.Sprintf("Error: Cannot find module '%s'", m)
		}),
		moduleName.Map(func(m string) string {
			return fmt.Sprintf("ModuleNotFoundError: No module named '%s'", m)
		}),
		gen.IntRange(1024, 65000).Map(func(p int) string {
			return fmt.Sprintf("Error: listen EADDRINUSE :::%d", p)
		}),
		moduleName.Map(func(c string) string {
			return fmt.Sprintf("sh: %s: command not found", c)
		}),
		moduleName.Map(func(f string) string {
			return fmt.Sprintf("ENOENT: no such file or directory, open '/app/%s.json'", f)
		}),
	)
}

// Property: for fixed input text, Classify returns the same result across
// repeated calls.
func TestClassifyDeterminismProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("classification is deterministic", prop.ForAll(
		func(lines []string) bool {
			c := New()
			input := strings.Join(lines, "\n")

			first := c.Classify(input)
			for i := 0; i < 3; i++ {
				if !reflect.DeepEqual(c.Classify(input), first) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(4, genErrorLine()),
	))

	properties.TestingRun(t)
}

// Property: N occurrences of the identical error line collapse to exactly
// one TerminalError for that (category, root cause, discriminator).
func TestClassifyDedupProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("repeated identical errors dedup to one", prop.ForAll(
		func(line string, repeats int) bool {
			c := New()

			lines := make([]string, repeats)
			for i := range lines {
				lines[i] = line
			}
			errors := c.Classify(strings.Join(lines, "\n"))

			seen := make(map[string]int)
			for _, e := range errors {
				key := string(e.Category) + "|" + e.RootCause + "|" + e.Discriminator()
				seen[key]++
			}
			for _, n := range seen {
				if n != 1 {
					return false
				}
			}
			return len(errors) > 0
		},
		genErrorLine(),
		gen.IntRange(2, 10),
	))

	properties.TestingRun(t)
}

// Property: the primary error for any mix containing a dependency error is
// always the dependency error.
func TestPrimaryErrorPriorityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("dependency outranks every other category", prop.ForAll(
		func(module string, port int) bool {
			c := New()
			input := fmt.Sprintf("Error: listen EADDRINUSE :::%d\nError: Cannot find module '%s'", port, module)

			primary := PrimaryError(c.Classify(input))
			return primary != nil && primary.MissingModule == module
		},
		gen.RegexMatch(`[a-z][a-z0-9-]{1,15}`),
		gen.IntRange(1024, 65000),
	))

	properties.TestingRun(t)
}
