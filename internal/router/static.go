package router

// latency tiers: instant (<3s), fast (<15s), normal (<60s), slow (agentic ok).
type staticRoute struct {
	model   string
	latency string
}

var staticMap = map[string]staticRoute{
	"intent_classification": {"qwen2.5:0.5b", "instant"},
	"prompt_rewriting":      {"qwen2.5:0.5b", "instant"},
	"sentiment_analysis":    {"qwen2.5:0.5b", "instant"},
	"safety_check":          {"qwen2.5:0.5b", "instant"},

	"general_chat":    {"llama3.2:3b", "fast"},
	"summarization":   {"llama3.2:3b", "fast"},
	"task_management": {"llama3.2:3b", "fast"},
	"translation":     {"qwen2.5:3b", "fast"},

	"web_search":        {"llama3.1:8b", "normal"},
	"image_description": {"llava:7b", "normal"},

	"coding":              {"qwen2.5-coder:14b", "slow"},
	"debugging":           {"qwen2.5-coder:14b", "slow"},
	"shell_command":       {"qwen2.5-coder:14b", "slow"},
	"skill_writing":       {"qwen2.5-coder:14b", "slow"},
	"structured_output":   {"qwen2.5-coder:14b", "slow"},
	"file_management":     {"qwen2.5-coder:14b", "slow"},
	"data_analysis":       {"qwen2.5-coder:14b", "slow"},
	"math":                {"deepseek-r1:14b", "slow"},
	"reasoning":           {"deepseek-r1:14b", "slow"},
	"error_recovery":      {"deepseek-r1:14b", "slow"},
	"planning":            {"phi4:14b", "slow"},
	"research":            {"qwen2.5:14b", "slow"},
	"creative_writing":    {"qwen2.5:14b", "slow"},
	"agentic_task":        {"qwen2.5:14b", "slow"},
	"screenshot_analysis": {"llama3.2-vision:11b", "slow"},
}

var staticDefault = staticRoute{"llama3.1:8b", "normal"}

// Budgets cap response length per latency tier so a 14B model cannot ramble
// for twenty minutes.
var baseBudgets = map[string]int{
	"instant": 150,
	"fast":    512,
	"normal":  1024,
	"slow":    2048,
}

// Tasks that need more room even on slow models.
var expansiveTasks = map[string]int{
	"skill_writing":    4096,
	"coding":           4096,
	"research":         3000,
	"data_analysis":    3000,
	"creative_writing": 3000,
	"planning":         2500,
	"debugging":        3000,
	"agentic_task":     3000,
}

// staticCtx is the context window for static-mode decisions. The agentic
// loop was tuned against this size.
const staticCtx = 8192

var fallbackChains = map[string][]string{
	"qwen2.5-coder:14b":   {"qwen2.5-coder:7b", "llama3.1:8b", "llama3.2:3b"},
	"deepseek-r1:14b":     {"deepseek-r1:7b", "qwen2.5:7b", "llama3.1:8b"},
	"phi4:14b":            {"mistral-nemo:12b", "mistral:7b", "llama3.1:8b"},
	"qwen2.5:14b":         {"qwen2.5:7b", "llama3.1:8b", "llama3.2:3b"},
	"llama3.2-vision:11b": {"llava:7b", "llama3.2:3b"},
	"llama3.1:8b":         {"llama3.2:3b"},
	"llava:7b":            {"llama3.2:3b"},
}

var defaultFallbacks = []string{"llama3.1:8b", "llama3.2:3b"}

func fallbackChain(model string) []string {
	if chain, ok := fallbackChains[model]; ok {
		return append([]string(nil), chain...)
	}
	return append([]string(nil), defaultFallbacks...)
}

func routeStatic(category string) Decision {
	route, ok := staticMap[category]
	if !ok {
		route = staticDefault
	}
	return Decision{
		Model:         route.model,
		Tier:          route.latency,
		TokenBudget:   tokenBudgetStatic(route.latency, category),
		ContextWindow: staticCtx,
		Fallbacks:     fallbackChain(route.model),
	}
}

func tokenBudgetStatic(latency, category string) int {
	if budget, ok := expansiveTasks[category]; ok {
		return budget
	}
	if budget, ok := baseBudgets[latency]; ok {
		return budget
	}
	return 1024
}
