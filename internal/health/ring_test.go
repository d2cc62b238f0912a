package health

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeededProvidersStartUnknown(t *testing.T) {
	r := NewRing([]string{"groq", "gemini"})

	status := r.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "unknown", status["groq"].Status)
	assert.Empty(t, status["groq"].History)
}

func TestRecordFlipsStatus(t *testing.T) {
	r := NewRing([]string{"groq"})

	r.Record("groq", nil)
	assert.Equal(t, "up", r.Status()["groq"].Status)

	r.Record("groq", errors.New("connection refused"))
	got := r.Status()["groq"]
	assert.Equal(t, "down", got.Status)
	require.Len(t, got.History, 2)
	assert.True(t, got.History[0].Success)
	assert.Equal(t, "connection refused", got.History[1].Error)
}

func TestHistoryCapped(t *testing.T) {
	r := NewRing([]string{"groq"})

	for i := 0; i < 25; i++ {
		r.Record("groq", nil)
	}
	assert.Len(t, r.Status()["groq"].History, historySize)
}

func TestUnknownProviderAddedOnFirstRecord(t *testing.T) {
	r := NewRing(nil)

	r.Record("openrouter", nil)
	got, ok := r.Status()["openrouter"]
	require.True(t, ok)
	assert.Equal(t, "up", got.Status)
}

func TestHandlerServesJSON(t *testing.T) {
	r := NewRing([]string{"groq"})
	r.Record("groq", nil)

	rec := httptest.NewRecorder()
	r.Handler()(rec, httptest.NewRequest("GET", "/api/v1/providers", nil))

	require.Equal(t, 200, rec.Code)
	var body map[string]ProviderStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "up", body["groq"].Status)

	rec = httptest.NewRecorder()
	r.Handler()(rec, httptest.NewRequest("POST", "/api/v1/providers", nil))
	assert.Equal(t, 405, rec.Code)
}
