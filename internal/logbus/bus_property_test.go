package logbus

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/bharatbuild/buildfix/internal/models"
)

func TestBusProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	// Property: a source buffer never exceeds the cap and keeps the most
	// recent entries in insertion order.
	properties.Property("buffer is bounded and FIFO-trimmed", prop.ForAll(
		func(n int) bool {
			b := New("p", nil)
			for i := 0; i < n; i++ {
				b.AddBuildError(fmt.Sprintf("error %d", i))
			}

			logs := b.GetAllLogs()[models.SourceBuild]
			want := n
			if want > maxLogsPerSource {
				want = maxLogsPerSource
			}
			if len(logs) != want {
				return false
			}
			for i, e := range logs {
				if e.Message != fmt.Sprintf("error %d", n-want+i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 3*maxLogsPerSource),
	))

	// Property: accessors return copies; mutating a returned slice does
	// not change the bus.
	properties.Property("reads are snapshots", prop.ForAll(
		func(msg string) bool {
			b := New("p", nil)
			b.AddBuildError(msg)

			logs := b.GetAllLogs()[models.SourceBuild]
			logs[0].Message = "mutated"

			return b.GetAllLogs()[models.SourceBuild][0].Message == msg
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" && s != "mutated" }),
	))

	properties.TestingRun(t)
}
