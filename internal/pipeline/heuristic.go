package pipeline

import "strings"

// keywordRule maps trigger substrings to a category. Rules are ordered;
// the first match wins.
type keywordRule struct {
	keywords []string
	category string
}

var heuristicRules = []keywordRule{
	{[]string{"write a skill", "new skill", "new tool", "create a skill"}, "skill_writing"},
	{[]string{"debug", "fix this", "fix the", "error:", "traceback", "exception"}, "debugging"},
	{[]string{"write a ", "create a ", "build a ", "implement "}, "coding"},
	{[]string{"def ", "class ", "function(", "import "}, "coding"},
	{[]string{"bash", "shell", "sudo ", "apt ", "pip install", "systemctl"}, "shell_command"},
	{[]string{"calculate", "solve", "integral", "derivative", "equation"}, "math"},
	{[]string{"search for", "look up", "find me", "what is the latest"}, "web_search"},
	{[]string{"summarize", "tldr", "summary", "shorten"}, "summarization"},
	{[]string{"translate", "in french", "in spanish", "in german"}, "translation"},
	{[]string{"plan", "schedule", "roadmap", "steps to", "how do i"}, "planning"},
	{[]string{"research", "investigate", "deep dive", "tell me everything"}, "research"},
	{[]string{"screenshot", "what's on screen", "what do you see"}, "screenshot_analysis"},
	{[]string{"analyze", ".csv", "dataframe", "dataset", "graph"}, "data_analysis"},
}

// heuristicCategory classifies a message without the model: a fixed ordered
// keyword scan, defaulting to general_chat.
func heuristicCategory(text string) string {
	t := strings.ToLower(text)
	for _, rule := range heuristicRules {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule.category
			}
		}
	}
	return "general_chat"
}

var toolSignals = []string{
	"search", "fetch", "download", "run", "execute", "install",
	"file", "read", "write", "open", "browse", "screenshot",
	"latest", "current", "today", "news", "weather", "price",
}

// needsTools guesses whether a message will require skill calls.
func needsTools(text string) bool {
	t := strings.ToLower(text)
	for _, s := range toolSignals {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}
