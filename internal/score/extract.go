package score

import (
	"regexp"
	"strings"
)

// Matches the first fenced block, tolerating an optional python language tag
// in any case. The body match is non-greedy so later blocks are ignored.
var codeBlockRE = regexp.MustCompile("(?is)```(?:python)?\\s*(.*?)```")

// ExtractFirstCodeBlock pulls the first fenced code block out of a model
// completion. The body is trimmed and normalized to end with a single
// newline. ok is false when the text has no fenced block at all.
func ExtractFirstCodeBlock(text string) (code string, ok bool) {
	m := codeBlockRE.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]) + "\n", true
}
