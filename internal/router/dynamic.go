package router

import (
	"regexp"
	"strings"
)

// Dynamic mode tries a small model first and escalates only when the model
// itself signals that it is out of its depth. Most tasks never touch 14B.

// EscalationSignal is the marker a model emits to request a bigger model.
const EscalationSignal = "ESCALATE:"

// EscalationAddendum is appended to the system prompt whenever a decision
// carries an escalation target.
const EscalationAddendum = `
IMPORTANT: If this task genuinely requires capabilities beyond what you have,
output exactly: ESCALATE: <one sentence explaining what you need>
Only escalate if truly necessary — most tasks you can handle directly.
`

// escalationMap pairs each small candidate with its bigger sibling, used
// when a fallback model asks to escalate.
var escalationMap = map[string]string{
	"llama3.1:8b":      "qwen2.5:14b",
	"qwen2.5:7b":       "qwen2.5:14b",
	"deepseek-r1:7b":   "deepseek-r1:14b",
	"qwen2.5-coder:7b": "qwen2.5-coder:14b",
	"mistral:7b":       "qwen2.5:14b",
}

// always14B categories skip small-first entirely: they need the best code
// the runtime can produce.
var always14B = map[string]bool{
	"skill_writing":  true,
	"error_recovery": true,
}

// never14B categories stay on the 3B tier no matter what.
var never14B = map[string]bool{
	"general_chat":       true,
	"summarization":      true,
	"translation":        true,
	"sentiment_analysis": true,
	"structured_output":  true,
}

var tokenBudgetsByTier = map[string]int{
	"3b":                  512,
	"3b_with_escalation":  600,
	"8b":                  1024,
	"8b_with_escalation":  1200,
	"14b_direct":          2048,
}

var ctxByTier = map[string]int{
	"3b":                  4096,
	"3b_with_escalation":  4096,
	"8b":                  6144,
	"8b_with_escalation":  6144,
	"14b_direct":          8192,
}

func routeDynamic(category string) Decision {
	model, target, tier := dynamicModel(category)
	budget := tokenBudgetsByTier[tier]
	if budget == 0 {
		budget = 1024
	}
	numCtx := ctxByTier[tier]
	if numCtx == 0 {
		numCtx = 6144
	}
	d := Decision{
		Model:            model,
		EscalationTarget: target,
		Tier:             tier,
		TokenBudget:      budget,
		ContextWindow:    numCtx,
		Fallbacks:        fallbackChain(model),
	}
	if b, ok := expansiveTasks[category]; ok && b > d.TokenBudget {
		d.TokenBudget = b
	}
	return d
}

func dynamicModel(category string) (model, escalationTarget, tier string) {
	if always14B[category] {
		return "qwen2.5-coder:14b", "", "14b_direct"
	}
	if never14B[category] {
		return "llama3.2:3b", "", "3b"
	}

	switch category {
	case "coding", "debugging", "shell_command", "math", "reasoning":
		return "qwen2.5-coder:7b", "qwen2.5-coder:14b", "8b_with_escalation"
	case "research", "planning", "data_analysis", "agentic_task":
		return "llama3.1:8b", "qwen2.5:14b", "8b_with_escalation"
	case "web_search", "task_management", "file_management":
		return "llama3.1:8b", "", "8b"
	}

	// creative_writing, image_description and everything else start small.
	return "llama3.2:3b", "llama3.1:8b", "3b_with_escalation"
}

// EscalationTargetFor returns the bigger sibling for a model, for when a
// fallback model asks to escalate mid-run.
func EscalationTargetFor(model string) (string, bool) {
	target, ok := escalationMap[model]
	return target, ok
}

var escalateRe = regexp.MustCompile(`ESCALATE:\s*(.+)`)

// CheckEscalation returns the model's stated reason when the reply carries
// the escalation signal.
func CheckEscalation(reply string) (string, bool) {
	m := escalateRe.FindStringSubmatch(reply)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
