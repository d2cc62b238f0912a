package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/forge-coordinator/internal/config"
)

func chatTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *ChatClient) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewChatClient("groq", &config.ProviderConfig{
		APIKey: "test-key",
		URL:    srv.URL,
	})
	return srv, client
}

func TestChatClientSend(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	_, client := chatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(chatResponse{
			Model: "llama3-8b-8192",
			Choices: []chatChoice{
				{Message: chatMessage{Role: "assistant", Content: "hello back"}},
			},
			Usage: chatUsage{TotalTokens: 42},
		})
	})

	resp, err := client.Send(context.Background(), &Request{
		Prompt: "hello",
		Role:   "Engineer",
		Model:  "llama3-8b-8192",
	})
	require.NoError(t, err)

	assert.Equal(t, "hello back", resp.Content)
	assert.Equal(t, "llama3-8b-8192", resp.Model)
	assert.Equal(t, 42, resp.TokensUsed)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "llama3-8b-8192", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Contains(t, gotReq.Messages[0].Content, "Engineer")
	assert.Equal(t, "hello", gotReq.Messages[1].Content)
}

func TestChatClientAuthError(t *testing.T) {
	for _, key := range []string{"", "your-groq-api-key"} {
		client := NewChatClient("groq", &config.ProviderConfig{
			APIKey: key,
			URL:    "http://localhost:1",
		})

		_, err := client.Send(context.Background(), &Request{Prompt: "hi", Model: "m"})
		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, KindAuth, perr.Kind)
	}
}

func TestChatClientRemoteError(t *testing.T) {
	_, client := chatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	})

	_, err := client.Send(context.Background(), &Request{Prompt: "hi", Model: "m"})
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindRemote, perr.Kind)
	assert.Equal(t, http.StatusTooManyRequests, perr.Status)
	assert.Contains(t, perr.Error(), "rate limited")
}

func TestChatClientParseError(t *testing.T) {
	_, client := chatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := client.Send(context.Background(), &Request{Prompt: "hi", Model: "m"})
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindParse, perr.Kind)
}

func TestChatClientEmptyChoices(t *testing.T) {
	_, client := chatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	})

	_, err := client.Send(context.Background(), &Request{Prompt: "hi", Model: "m"})
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindParse, perr.Kind)
}

func TestChatClientTransportError(t *testing.T) {
	srv, client := chatTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := client.Send(context.Background(), &Request{Prompt: "hi", Model: "m"})
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindTransport, perr.Kind)
}

func TestNewSet(t *testing.T) {
	cfg := config.Default()
	clients := NewSet(&cfg.Proxies)

	for _, name := range []string{"gpt_oss", "groq", "openrouter", "gemini"} {
		require.Contains(t, clients, name)
		assert.Equal(t, name, clients[name].Name())
	}
}
