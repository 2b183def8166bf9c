package executor

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Reply sentinels are part of the model contract: SKILL invokes a tool,
// FINAL terminates the turn, ESCALATE asks for a bigger model. Parsing is
// scanner based rather than regex-greedy so a pathological reply cannot
// blow up the loop.

// maxSkillJSON caps how much of a reply the skill-call decoder will look at.
const maxSkillJSON = 8 << 10

var (
	thinkRe    = regexp.MustCompile(`(?s)<think>(.*?)</think>`)
	finalRe    = regexp.MustCompile(`(?s)FINAL:\s*(.*)`)
	skillLineRe = regexp.MustCompile(`(?m)^SKILL:.*$`)
	newTasksRe = regexp.MustCompile(`(?s)NEW_TASKS:\s*(\[.*?\])`)
)

// stripThink removes reasoning blocks from a reply and returns them
// separately so they can be surfaced as thinking events.
func stripThink(raw string) (reply string, thinking []string) {
	reply = thinkRe.ReplaceAllStringFunc(raw, func(block string) string {
		m := thinkRe.FindStringSubmatch(block)
		if t := strings.TrimSpace(m[1]); t != "" {
			thinking = append(thinking, t)
		}
		return ""
	})
	return strings.TrimSpace(reply), thinking
}

// parseFinal extracts the final answer, if the reply carries one.
func parseFinal(reply string) (string, bool) {
	m := finalRe.FindStringSubmatch(reply)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// parseSkill extracts the first SKILL JSON object. The object is matched by
// brace depth, not regex, and capped in size; an unbalanced blob is still
// returned so the decode error can be fed back to the model.
func parseSkill(reply string) (string, bool) {
	idx := strings.Index(reply, "SKILL:")
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimLeft(reply[idx+len("SKILL:"):], " \t\r\n")
	if rest == "" || rest[0] != '{' {
		return "", false
	}
	if len(rest) > maxSkillJSON {
		rest = rest[:maxSkillJSON]
	}

	depth, inStr, esc := 0, false, false
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return rest[:i+1], true
			}
		}
	}
	// Unbalanced within the cap: hand back what we have, the JSON decoder
	// will reject it and the model gets told.
	return rest, true
}

type skillCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

func decodeSkillCall(blob string) (skillCall, error) {
	var call skillCall
	err := json.Unmarshal([]byte(blob), &call)
	return call, err
}

// TaskSuggestion is a follow-up task proposed by the model after FINAL.
type TaskSuggestion struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	TaskType     string `json:"task_type"`
	PriorityName string `json:"priority_name"`
}

// parseNewTasks pulls a NEW_TASKS array out of a background reply and
// returns the reply with the block removed. Undecodable blocks are dropped.
func parseNewTasks(reply string) ([]TaskSuggestion, string) {
	loc := newTasksRe.FindStringSubmatchIndex(reply)
	if loc == nil {
		return nil, reply
	}
	var tasks []TaskSuggestion
	if err := json.Unmarshal([]byte(reply[loc[2]:loc[3]]), &tasks); err != nil {
		tasks = nil
	}
	cleaned := strings.TrimSpace(reply[:loc[0]])

	kept := tasks[:0]
	for _, t := range tasks {
		if strings.TrimSpace(t.Title) != "" {
			kept = append(kept, t)
		}
	}
	return kept, cleaned
}

// extractBestOutput salvages the most useful content from a reply that never
// reached FINAL.
func extractBestOutput(reply string) string {
	out := thinkRe.ReplaceAllString(reply, "")
	out = skillLineRe.ReplaceAllString(out, "")
	if i := strings.Index(out, "NEW_TASKS:"); i >= 0 {
		out = out[:i]
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "No output generated."
	}
	return out
}
