package pipeline

// Intent is the fused output of the pre-pipeline: classification, rewrite,
// and fact extraction from one model call.
type Intent struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	NeedsTools bool    `json:"needs_tools"`
	Rewritten  string  `json:"rewritten"`
	Facts      []Fact  `json:"facts"`
	Source     string  `json:"_source"` // "llm" or "heuristic"
}

// Fact is one explicit statement about the user extracted from a message.
type Fact struct {
	Category string `json:"category"`
	Fact     string `json:"fact"`
}

// Categories is the closed set of intent labels. Unknown labels coerce to
// general_chat.
var Categories = []string{
	"general_chat", "coding", "debugging", "math", "reasoning",
	"summarization", "web_search", "data_analysis", "creative_writing",
	"translation", "planning", "shell_command", "file_management",
	"image_description", "screenshot_analysis", "task_management",
	"research", "skill_writing", "agentic_task", "error_recovery",
}

// FactCategories label the kinds of user facts the extractor may emit.
var FactCategories = []string{
	"name", "location", "occupation", "interests", "family",
	"health", "schedule", "preferences", "goals", "projects",
	"skills", "technology",
}

var categorySet = func() map[string]bool {
	m := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		m[c] = true
	}
	return m
}()

// ValidCategory reports whether c is a known intent label.
func ValidCategory(c string) bool {
	return categorySet[c]
}
