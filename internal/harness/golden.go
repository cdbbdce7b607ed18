package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render formats a result as the text stored in golden files: the head, the
// committed trace with its violations, then the final cells and queue.
func Render(name string, result *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	fmt.Fprintf(&buf, "head: %d\n", result.Head)

	buf.WriteString("trace:\n")
	for _, ev := range result.Trace {
		fmt.Fprintf(&buf, "  %d %s by %s\n", ev.Seq, ev.Name, ev.Actor)
		for _, v := range ev.Violations {
			fmt.Fprintf(&buf, "    ! %s\n", v)
		}
	}

	buf.WriteString("cells:\n")
	for _, c := range result.Cells {
		fmt.Fprintf(&buf, "  %s\n", c)
	}
	buf.WriteString("queue:\n")
	for _, q := range result.Queue {
		fmt.Fprintf(&buf, "  %s\n", q)
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its rendered result
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Render(scenarioName, result))
}
