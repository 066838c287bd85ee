package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PromaticSolutions/FluencyAi/internal/config"
	"github.com/PromaticSolutions/FluencyAi/internal/models"
)

func newTestClient(serverURL string) *Client {
	return NewClient(config.Generation{
		GenerationAPIURL:  serverURL,
		GenerationAPIKey:  "test-key",
		GenerationModel:   "gpt-4o-mini",
		GenerationTimeout: 5 * time.Second,
	})
}

func TestGenerateChat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		assert.Equal(t, 500, req.MaxTokens)
		require.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello! How can I help?"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	messages := []models.ChatMessage{
		{Role: "system", Content: "You are a tutor."},
		{Role: "user", Content: "Hi!"},
	}

	reply, err := client.GenerateChat(context.Background(), messages, 0.7, 500)
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", reply)
}

func TestGenerateChat_UpstreamError(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "ошибка сервера",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "неавторизован",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "пустой список choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[]}`))
			},
		},
		{
			name: "невалидный JSON",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.GenerateChat(context.Background(), []models.ChatMessage{
				{Role: "user", Content: "Hi!"},
			}, 0.7, 500)
			assert.ErrorIs(t, err, ErrGenerationFailed)
		})
	}
}

func TestGenerateChat_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	for i := 0; i < 10; i++ {
		_, err := client.GenerateChat(context.Background(), []models.ChatMessage{
			{Role: "user", Content: "Hi!"},
		}, 0.7, 500)
		assert.ErrorIs(t, err, ErrGenerationFailed)
	}

	// После шести последовательных сбоев breaker открыт и запросы до сервера не доходят.
	assert.Equal(t, 6, hits)
}
