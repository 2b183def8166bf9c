package executor

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Long agentic runs accumulate skill results fast. Once the estimated token
// count crosses the threshold the middle of the history is folded into one
// summary message; the system prompt, the original task and the last four
// messages stay intact.

const (
	summaryThreshold = 5500
	summaryBodyCap   = 800
	summaryLineCap   = 200
)

// estimateTokens uses the 1 token ≈ 4 chars rule.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func historyTokens(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += estimateTokens(m.Content)
	}
	return total
}

func maybeCompress(msgs []*schema.Message) []*schema.Message {
	if historyTokens(msgs) < summaryThreshold || len(msgs) < 6 {
		return msgs
	}

	// Protect the system prompt and the original task. When a system
	// message leads the history, the first user turn sits behind it.
	head := 1
	if msgs[0].Role == schema.System && len(msgs) > 1 {
		head = 2
	}
	first := msgs[:head]
	middle := msgs[head : len(msgs)-4]
	last := msgs[len(msgs)-4:]
	if len(middle) == 0 {
		return msgs
	}

	var lines []string
	for _, m := range middle {
		content := m.Content
		if len(content) > summaryLineCap {
			content = content[:summaryLineCap]
		}
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(m.Role)), content))
	}
	body := strings.Join(lines, "\n")
	if len(body) > summaryBodyCap {
		body = body[:summaryBodyCap]
	}

	summary := schema.UserMessage(fmt.Sprintf(
		"[HISTORY SUMMARY — %d earlier messages compressed]\nKey actions taken so far:\n%s\n[End of summary. Continuing from most recent exchange below.]",
		len(middle), body))

	compressed := make([]*schema.Message, 0, len(first)+1+len(last))
	compressed = append(compressed, first...)
	compressed = append(compressed, summary)
	compressed = append(compressed, last...)
	return compressed
}
