package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgeworks/forge-coordinator/internal/config"
)

// Client is the uniform contract every provider adapter implements. Send
// performs exactly one HTTP call: no internal retries, no usage side effects.
type Client interface {
	Send(ctx context.Context, req *Request) (*Response, error)
	Name() string
}

// Request is one generation request
type Request struct {
	Prompt string
	Role   string
	Model  string
}

// Response is one generation response
type Response struct {
	Content    string
	Model      string
	TokensUsed int
}

// systemPrompt is prepended to every request so responses stay in role.
func systemPrompt(role string) string {
	if role == "" {
		role = "Assistant"
	}
	return fmt.Sprintf("You are %s. Provide helpful, accurate, and detailed responses.", role)
}

// placeholderKey reports whether a credential is unset or still the sample
// value shipped in config templates.
func placeholderKey(key string) bool {
	return key == "" || strings.HasPrefix(key, "your-")
}

// NewSet builds the adapter for each configured provider, keyed by provider
// name as used in candidate tables.
func NewSet(cfg *config.ProviderSet) map[string]Client {
	return map[string]Client{
		"gpt_oss":    NewChatClient("gpt_oss", &cfg.GPTOSS),
		"groq":       NewChatClient("groq", &cfg.Groq),
		"openrouter": NewChatClient("openrouter", &cfg.OpenRouter),
		"gemini":     NewGeminiClient(&cfg.Gemini),
	}
}
