package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/forgeworks/forge-coordinator/internal/config"
)

// GeminiClient talks to the Gemini generateContent endpoint, which carries
// its own request shape and passes the credential as a query parameter.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGeminiClient creates a Gemini adapter
func NewGeminiClient(cfg *config.ProviderConfig) *GeminiClient {
	return &GeminiClient{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
	}
}

func (c *GeminiClient) Name() string {
	return "gemini"
}

// Send sends one generateContent request
func (c *GeminiClient) Send(ctx context.Context, req *Request) (*Response, error) {
	if placeholderKey(c.apiKey) {
		return nil, authErr("gemini", "API key not configured")
	}

	genReq := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{
				{Text: fmt.Sprintf("%s\n\nUser: %s", systemPrompt(req.Role), req.Prompt)},
			}},
		},
		GenerationConfig: geminiGenConfig{
			MaxOutputTokens: 2000,
			Temperature:     0.7,
		},
	}

	body, err := json.Marshal(genReq)
	if err != nil {
		return nil, parseErr("gemini", err)
	}

	url := fmt.Sprintf("%s?key=%s", c.baseURL, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, transportErr("gemini", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportErr("gemini", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, remoteErr("gemini", resp.StatusCode, string(errBody))
	}

	var genResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, parseErr("gemini", err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return nil, parseErr("gemini", io.ErrUnexpectedEOF)
	}

	return &Response{
		Content:    genResp.Candidates[0].Content.Parts[0].Text,
		Model:      req.Model,
		TokensUsed: genResp.UsageMetadata.TotalTokenCount,
	}, nil
}

// geminiRequest is a generateContent API request
type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

// geminiResponse is a generateContent API response
type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount int `json:"promptTokenCount"`
		TotalTokenCount  int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}
