package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrompt(t *testing.T) {
	tests := []struct {
		prompt string
		want   Category
	}{
		{"debug this function", Coding},
		{"fix the sql query in my repository layer", Coding},
		{"tell me a story about the sea", Creative},
		{"compose a poem for my friend", Creative},
		{"analyze these survey results", Analysis},
		{"compare the two proposals", Analysis},
		{"quick, is the sky blue", Fast},
		{"what is the capital of France", Fast},
		{"hello there", Default},
		{"", Default},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Prompt(tt.prompt), "prompt %q", tt.prompt)
	}
}

func TestPromptCaseInsensitive(t *testing.T) {
	assert.Equal(t, Coding, Prompt("DEBUG THIS FUNCTION"))
	assert.Equal(t, Creative, Prompt("Tell Me A STORY"))
}

func TestPromptPriorityOrder(t *testing.T) {
	// "write" is a creative keyword, "code" a coding keyword; coding is
	// checked first and wins.
	assert.Equal(t, Coding, Prompt("write some code for me"))

	// "story" (creative) beats "short" (fast)
	assert.Equal(t, Creative, Prompt("a short story"))

	// "data" (analysis) beats "summary" (fast)
	assert.Equal(t, Analysis, Prompt("summary of the data"))
}

func TestPromptDeterministic(t *testing.T) {
	prompt := "investigate the quick brown fox"
	first := Prompt(prompt)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Prompt(prompt))
	}
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []Category{Coding, Creative, Analysis, Fast, Default}, Categories())
}
