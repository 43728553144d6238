package recommend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClientComplete(t *testing.T) {
	t.Run("returns completion text", func(t *testing.T) {
		var gotAuth string
		var gotReq openAIRequest

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

			resp := map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": "1. Do the thing"}},
				},
			}
			_ = json.NewEncoder(w).Encode(resp)
		}))
		defer srv.Close()

		client := newOpenAIClient(Config{
			Provider: "openai",
			APIKey:   "sk-test",
			BaseURL:  srv.URL,
			Timeout:  time.Second,
		})

		out, err := client.Complete(context.Background(), "prompt text")
		require.NoError(t, err)
		assert.Equal(t, "1. Do the thing", out)
		assert.Equal(t, "Bearer sk-test", gotAuth)
		assert.Equal(t, defaultOpenAIModel, gotReq.Model)
		require.Len(t, gotReq.Messages, 1)
		assert.Equal(t, "prompt text", gotReq.Messages[0].Content)
	})

	t.Run("surfaces API errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "invalid api key"},
			})
		}))
		defer srv.Close()

		client := newOpenAIClient(Config{APIKey: "sk-bad", BaseURL: srv.URL, Timeout: time.Second})

		_, err := client.Complete(context.Background(), "prompt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid api key")
	})

	t.Run("rejects empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		}))
		defer srv.Close()

		client := newOpenAIClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: time.Second})

		_, err := client.Complete(context.Background(), "prompt")
		assert.Error(t, err)
	})

	t.Run("honors context deadline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer srv.Close()

		client := newOpenAIClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: time.Second})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := client.Complete(ctx, "prompt")
		assert.Error(t, err)
	})
}

func TestAnthropicClientComplete(t *testing.T) {
	t.Run("returns completion text", func(t *testing.T) {
		var gotKey, gotVersion string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/messages", r.URL.Path)
			gotKey = r.Header.Get("X-API-Key")
			gotVersion = r.Header.Get("Anthropic-Version")

			resp := map[string]any{
				"content": []map[string]any{
					{"type": "text", "text": "1. Do the thing"},
				},
			}
			_ = json.NewEncoder(w).Encode(resp)
		}))
		defer srv.Close()

		client := newAnthropicClient(Config{
			APIKey:  "sk-ant-test",
			BaseURL: srv.URL,
			Timeout: time.Second,
		})

		out, err := client.Complete(context.Background(), "prompt")
		require.NoError(t, err)
		assert.Equal(t, "1. Do the thing", out)
		assert.Equal(t, "sk-ant-test", gotKey)
		assert.Equal(t, "2023-06-01", gotVersion)
	})

	t.Run("surfaces API errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "overloaded"},
			})
		}))
		defer srv.Close()

		client := newAnthropicClient(Config{APIKey: "sk-ant-test", BaseURL: srv.URL, Timeout: time.Second})

		_, err := client.Complete(context.Background(), "prompt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "overloaded")
	})
}
