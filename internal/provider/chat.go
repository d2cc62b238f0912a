package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/forgeworks/forge-coordinator/internal/config"
)

// ChatClient talks to an OpenAI-style chat completions endpoint. It serves
// the gpt_oss, groq and openrouter providers, which share the wire format
// and differ only in endpoint and credential.
type ChatClient struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewChatClient creates a chat completions adapter for one provider
func NewChatClient(name string, cfg *config.ProviderConfig) *ChatClient {
	return &ChatClient{
		name:    name,
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
	}
}

func (c *ChatClient) Name() string {
	return c.name
}

// Send sends one chat completion request
func (c *ChatClient) Send(ctx context.Context, req *Request) (*Response, error) {
	if placeholderKey(c.apiKey) {
		return nil, authErr(c.name, "API key not configured")
	}

	chatReq := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(req.Role)},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   2000,
		Temperature: 0.7,
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, parseErr(c.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, transportErr(c.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportErr(c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, remoteErr(c.name, resp.StatusCode, string(errBody))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, parseErr(c.name, err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, parseErr(c.name, io.ErrUnexpectedEOF)
	}

	model := chatResp.Model
	if model == "" {
		model = req.Model
	}

	return &Response{
		Content:    chatResp.Choices[0].Message.Content,
		Model:      model,
		TokensUsed: chatResp.Usage.TotalTokens,
	}, nil
}

// chatRequest is an OpenAI-style API request
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// chatMessage is one chat turn
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is an OpenAI-style API response
type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
