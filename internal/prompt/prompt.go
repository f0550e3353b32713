package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Rendered is a materialized prompt pair plus its identity hash. Rendering
// is pure: the same template, years and statement always produce the same
// bytes and therefore the same hash.
type Rendered struct {
	System string
	User   string
	SHA256 string
}

const systemTemplate = `You are a software engineer with %d years of experience.
Solve the user's programming task one-shot, using your years of experience as a source of expertise.
Return only Python code in a single fenced code block.
Your program must read from stdin and print exactly two lines:
- line 1: Part A answer
- line 2: Part B answer
Do not print anything else.
`

var placeholderRE = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Render fills the user template's {years} and {problem_statement}
// placeholders and builds the experience-primed system prompt. The puzzle
// input must never reach the model, so a template that still carries an
// {input_payload} placeholder is rejected here, before any network call.
func Render(template string, years int, problemStatement string) (*Rendered, error) {
	var unknown []string
	user := placeholderRE.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		switch name {
		case "years":
			return strconv.Itoa(years)
		case "problem_statement":
			return problemStatement
		default:
			unknown = append(unknown, name)
			return m
		}
	})
	for _, name := range unknown {
		if name == "input_payload" {
			return nil, errors.New("prompt template references {input_payload}, but the puzzle input is never included in the LLM prompt; remove that placeholder from the template")
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("prompt template has unknown placeholder {%s}", unknown[0])
	}

	system := fmt.Sprintf(systemTemplate, years)
	sum := sha256.Sum256([]byte(system + "\n\n" + user))
	return &Rendered{
		System: system,
		User:   user,
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}
