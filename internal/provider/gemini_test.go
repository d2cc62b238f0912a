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

func TestGeminiClientSend(t *testing.T) {
	var gotKey string
	var gotReq geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "flash says hi"}]}}],
			"usageMetadata": {"totalTokenCount": 17}
		}`))
	}))
	defer srv.Close()

	client := NewGeminiClient(&config.ProviderConfig{APIKey: "gem-key", URL: srv.URL})
	resp, err := client.Send(context.Background(), &Request{
		Prompt: "hello",
		Role:   "Researcher",
		Model:  "gemini-1.5-flash",
	})
	require.NoError(t, err)

	assert.Equal(t, "flash says hi", resp.Content)
	assert.Equal(t, "gemini-1.5-flash", resp.Model)
	assert.Equal(t, 17, resp.TokensUsed)

	assert.Equal(t, "gem-key", gotKey)
	require.Len(t, gotReq.Contents, 1)
	assert.Contains(t, gotReq.Contents[0].Parts[0].Text, "Researcher")
	assert.Contains(t, gotReq.Contents[0].Parts[0].Text, "hello")
}

func TestGeminiClientAuthError(t *testing.T) {
	client := NewGeminiClient(&config.ProviderConfig{URL: "http://localhost:1"})

	_, err := client.Send(context.Background(), &Request{Prompt: "hi", Model: "m"})
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindAuth, perr.Kind)
}

func TestGeminiClientRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	client := NewGeminiClient(&config.ProviderConfig{APIKey: "gem-key", URL: srv.URL})
	_, err := client.Send(context.Background(), &Request{Prompt: "hi", Model: "m"})
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindRemote, perr.Kind)
	assert.Equal(t, http.StatusBadRequest, perr.Status)
}

func TestGeminiClientEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	client := NewGeminiClient(&config.ProviderConfig{APIKey: "gem-key", URL: srv.URL})
	_, err := client.Send(context.Background(), &Request{Prompt: "hi", Model: "m"})
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindParse, perr.Kind)
}
