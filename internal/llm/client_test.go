package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "anthropic", config: Config{Provider: "anthropic", APIKey: "k"}},
		{name: "openai uppercase", config: Config{Provider: "OpenAI", APIKey: "k"}},
		{name: "anthropic missing key", config: Config{Provider: "anthropic"}, wantErr: true},
		{name: "openai missing key", config: Config{Provider: "openai"}, wantErr: true},
		{name: "gemini missing key", config: Config{Provider: "gemini"}, wantErr: true},
		{name: "unknown provider", config: Config{Provider: "mystery", APIKey: "k"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestAnthropicClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "custom system", req["system"])
		assert.InDelta(t, 0.3, req["temperature"], 1e-9)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Spend less "},{"type":"text","text":"on rent."}]}`))
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{APIKey: "test-key", BaseURL: server.URL, SystemPrompt: "custom system"})
	require.NoError(t, err)

	reply, err := client.Complete(context.Background(), "advice?")
	require.NoError(t, err)
	assert.Equal(t, "Spend less on rent.", reply)
}

func TestOpenAIClient_Complete(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		want          string
		wantErr       bool
		wantRateLimit bool
		wantRetryable bool
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"role":"assistant","content":"Income is up."}}]}`,
			want:   "Income is up.",
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    `{"choices":[]}`,
			wantErr: true,
		},
		{
			name:          "rate limited",
			status:        http.StatusTooManyRequests,
			body:          `{"error":"slow down"}`,
			wantErr:       true,
			wantRateLimit: true,
		},
		{
			name:          "server error is retryable",
			status:        http.StatusBadGateway,
			body:          `oops`,
			wantErr:       true,
			wantRetryable: true,
		},
		{
			name:    "client error is final",
			status:  http.StatusUnauthorized,
			body:    `{"error":"bad key"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL + "/"})
			require.NoError(t, err)

			reply, err := client.Complete(context.Background(), "how are we doing?")
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.want, reply)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantRateLimit, errors.Is(err, common.ErrRateLimit))
			assert.Equal(t, tt.wantRateLimit || tt.wantRetryable, common.IsRetryable(err))
		})
	}
}
