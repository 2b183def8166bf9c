package executor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Post-execution validation: catch refusals, stubs and structurally wrong
// answers before they reach the user, so the turn can retry on another model.

var minLengths = map[string]int{
	"general_chat":      20,
	"coding":            100,
	"debugging":         50,
	"math":              20,
	"reasoning":         50,
	"summarization":     50,
	"web_search":        50,
	"data_analysis":     50,
	"creative_writing":  80,
	"translation":       10,
	"planning":          80,
	"shell_command":     10,
	"file_management":   10,
	"research":          150,
	"skill_writing":     100,
	"structured_output": 10,
	"agentic_task":      30,
}

const defaultMinLength = 20

var failurePhrases = []string{
	"i cannot", "i can't", "i'm unable", "i am unable", "as an ai",
	"i don't have access", "i cannot access", "i'm sorry, but",
	"unfortunately, i cannot", "i cannot complete this task",
}

var incompletePhrases = []string{
	"to be continued", "in the next step", "i will now",
	"please wait", "working on it",
}

var funcCallRe = regexp.MustCompile(`\w+\s*\(`)

// Validate checks an output against the category's quality bar. It returns
// false with a short reason suitable for injecting into a retry prompt.
func Validate(category, output string) (bool, string) {
	out := strings.TrimSpace(output)
	if out == "" {
		return false, "empty output"
	}

	minLen := minLengths[category]
	if minLen == 0 {
		minLen = defaultMinLength
	}
	if len(out) < minLen {
		return false, fmt.Sprintf("output too short (%d chars, need %d)", len(out), minLen)
	}

	lower := strings.ToLower(out)
	for _, p := range failurePhrases {
		if strings.Contains(lower, p) {
			return false, fmt.Sprintf("contains refusal phrase %q", p)
		}
	}
	for _, p := range incompletePhrases {
		if strings.Contains(lower, p) {
			return false, fmt.Sprintf("looks incomplete (%q)", p)
		}
	}

	switch category {
	case "coding", "debugging":
		if len(out) < 200 && !hasCodeMarkers(out) {
			return false, "no code in a coding answer"
		}
	case "skill_writing":
		if !strings.Contains(out, "DESCRIPTION") || !hasFunctionDef(out) {
			return false, "skill definition missing DESCRIPTION or a function body"
		}
	case "math":
		if !strings.ContainsFunc(out, unicode.IsDigit) {
			return false, "math answer contains no digits"
		}
	}
	return true, ""
}

func hasCodeMarkers(out string) bool {
	if strings.Contains(out, "```") {
		return true
	}
	for _, marker := range []string{"def ", "class ", "import ", "func ", "package "} {
		if strings.Contains(out, marker) {
			return true
		}
	}
	return funcCallRe.MatchString(out)
}

func hasFunctionDef(out string) bool {
	for _, marker := range []string{"def run", "func ", "\"command\""} {
		if strings.Contains(out, marker) {
			return true
		}
	}
	return false
}
