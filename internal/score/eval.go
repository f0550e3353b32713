package score

import (
	"fmt"
	"strings"

	"github.com/expbench/expbench/internal/result"
)

// EvalResult is the verdict for one trial's captured stdout.
type EvalResult struct {
	PassedA   bool
	PassedB   bool
	PassedAll bool
	OutputA   *string
	OutputB   *string
	ErrorKind result.ErrorKind
	ErrorMsg  string
}

// EvalTwoLineStdout grades program output that must contain exactly the
// part A answer on the first non-empty line and the part B answer on the
// second. Lines are whitespace-trimmed and blank lines are dropped before
// comparison; anything after the second line is ignored.
func EvalTwoLineStdout(stdout, expectedA, expectedB string) EvalResult {
	text := strings.Trim(stdout, "\n")
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) < 2 {
		res := EvalResult{
			ErrorKind: result.KindOutputParseError,
			ErrorMsg:  fmt.Sprintf("Expected 2 non-empty lines, got %d", len(lines)),
		}
		if len(lines) >= 1 {
			res.OutputA = &lines[0]
		}
		return res
	}
	outA, outB := lines[0], lines[1]
	res := EvalResult{
		PassedA: outA == expectedA,
		PassedB: outB == expectedB,
		OutputA: &outA,
		OutputB: &outB,
	}
	res.PassedAll = res.PassedA && res.PassedB
	return res
}
