package classify

import "strings"

// Category is the task category a prompt resolves to.
type Category string

const (
	Coding   Category = "coding"
	Creative Category = "creative"
	Analysis Category = "analysis"
	Fast     Category = "fast"
	Default  Category = "default"
)

// keyword sets evaluated in priority order; first match wins.
var (
	codingKeywords = []string{
		"code", "program", "function", "class", "algorithm", "debug", "error",
		"bug", "implementation", "development", "software", "app", "api",
		"database", "sql", "javascript", "python", "react", "node", "html", "css",
	}
	creativeKeywords = []string{
		"write", "story", "creative", "art", "design", "poem", "song",
		"narrative", "fiction", "imagine", "create", "draw", "paint", "compose",
	}
	analysisKeywords = []string{
		"analyze", "research", "study", "examine", "investigate", "evaluate",
		"compare", "contrast", "review", "assessment", "analysis", "data",
		"statistics", "report",
	}
	fastKeywords = []string{
		"quick", "simple", "brief", "summary", "short", "fast", "quick answer",
		"yes/no", "what is", "how to",
	}
)

// Prompt maps a free-text prompt to a Category. Case-insensitive substring
// matching; categories are checked coding, creative, analysis, fast, and a
// prompt matching none resolves to Default. Pure and total.
func Prompt(prompt string) Category {
	lower := strings.ToLower(prompt)

	if matchesAny(lower, codingKeywords) {
		return Coding
	}
	if matchesAny(lower, creativeKeywords) {
		return Creative
	}
	if matchesAny(lower, analysisKeywords) {
		return Analysis
	}
	if matchesAny(lower, fastKeywords) {
		return Fast
	}
	return Default
}

func matchesAny(prompt string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(prompt, kw) {
			return true
		}
	}
	return false
}

// Categories lists every category in classification priority order.
func Categories() []Category {
	return []Category{Coding, Creative, Analysis, Fast, Default}
}
