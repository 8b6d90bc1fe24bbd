package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the parts of a result that golden files pin down: the
// statement, its arguments in placeholder order, and the returned ids.
//
//	SELECT ... LIMIT :limit OFFSET :offset
//	entity_name_1 = "%john%"
//	limit = 10
//	offset = 0
//	ids = [2 1]
//	total = 2
//
// A request that fails to compile snapshots as "error = <CODE>"; one that
// does not fit the entity lists its issues.
func Snapshot(result *Result) []byte {
	var sb strings.Builder
	switch {
	case result.ErrorCode != "":
		fmt.Fprintf(&sb, "error = %s\n", result.ErrorCode)
	case len(result.Issues) > 0:
		for _, issue := range result.Issues {
			fmt.Fprintf(&sb, "issue = %s\n", issue)
		}
	default:
		sb.WriteString(result.SQL)
		sb.WriteString("\n")
		for _, a := range result.Args {
			fmt.Fprintf(&sb, "%s = %#v\n", a.Name, a.Value)
		}
		fmt.Fprintf(&sb, "ids = %v\n", result.IDs)
		fmt.Fprintf(&sb, "total = %d\n", result.Total)
	}
	return []byte(sb.String())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Assertion failures and golden
// mismatches fail t.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(result))
}
