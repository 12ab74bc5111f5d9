package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/kanopusdev/aurelis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(endpoint string) *Client {
	return NewClient(config.GitHubConfig{
		Endpoint:   endpoint,
		APIVersion: "2024-08-01-preview",
		Timeout:    5 * time.Second,
	}, "ghp_testtoken", zap.NewNop())
}

func completionRequest() *models.ChatCompletionRequest {
	return &models.ChatCompletionRequest{
		Model: models.ModelGPT4o,
		Messages: []models.ChatMessage{
			{Role: "user", Content: "hello"},
		},
	}
}

func TestComplete_Success(t *testing.T) {
	var gotReq models.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer ghp_testtoken", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-08-01-preview", r.Header.Get("api-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(models.ChatCompletionResponse{
			ID:    "cmpl-1",
			Model: models.ModelGPT4o,
			Choices: []models.ChatCompletionChoice{{
				Message:      models.ChatMessage{Role: "assistant", Content: "hi there"},
				FinishReason: "stop",
			}},
			Usage: &models.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		})
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Complete(context.Background(), completionRequest())
	require.NoError(t, err)
	assert.False(t, gotReq.Stream)
	assert.Equal(t, "hi there", resp.Choices[0].Message.Content)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestComplete_APIErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit exceeded","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), completionRequest())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "rate limit exceeded", apiErr.Message)
	assert.Equal(t, "rate_limit", apiErr.Type)
	assert.True(t, IsRateLimited(err))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsAuthError(err))
}

func TestComplete_UnauthorizedIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad credentials"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), completionRequest())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsRetryable(err))
}

func TestComplete_EmptyChoicesRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"cmpl-1","choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), completionRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestStream_DeliversDeltasAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"id":"c1","choices":[{"index":0,"delta":{"role":"assistant","content":"hel"}}]}` + "\n\n"))
		w.Write([]byte(`data: {"id":"c1","choices":[{"index":0,"delta":{"content":"lo"}}]}` + "\n\n"))
		w.Write([]byte(`data: {"id":"c1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	var content string
	var finish string
	usage, err := newTestClient(srv.URL).Stream(context.Background(), completionRequest(), func(chunk models.ChatCompletionChunk) error {
		for _, c := range chunk.Choices {
			content += c.Delta.Content
			if c.FinishReason != nil {
				finish = *c.FinishReason
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", content)
	assert.Equal(t, "stop", finish)
	require.NotNil(t, usage)
	assert.Equal(t, 5, usage.TotalTokens)
}

func TestStream_CallbackErrorStopsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`data: {"id":"c1","choices":[{"index":0,"delta":{"content":"x"}}]}` + "\n\n"))
		w.Write([]byte(`data: {"id":"c1","choices":[{"index":0,"delta":{"content":"y"}}]}` + "\n\n"))
	}))
	defer srv.Close()

	calls := 0
	_, err := newTestClient(srv.URL).Stream(context.Background(), completionRequest(), func(models.ChatCompletionChunk) error {
		calls++
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestParseChunk_NullFinishReasonIgnored(t *testing.T) {
	chunk := parseChunk(`{"id":"c1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"x"},"finish_reason":null}]}`)

	require.Len(t, chunk.Choices, 1)
	assert.Equal(t, "x", chunk.Choices[0].Delta.Content)
	assert.Nil(t, chunk.Choices[0].FinishReason)
	assert.Nil(t, chunk.Usage)
}

func TestPing(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/models", r.URL.Path)
			w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		assert.NoError(t, newTestClient(srv.URL).Ping(context.Background()))
	})

	t.Run("token rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		err := newTestClient(srv.URL).Ping(context.Background())
		assert.True(t, IsAuthError(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(nil)
		srv.Close()

		err := newTestClient(srv.URL).Ping(context.Background())
		require.Error(t, err)
		assert.False(t, IsAuthError(err))
	})
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "ghp_...oken", MaskToken("ghp_testtoken"))
	assert.Equal(t, "***", MaskToken("short"))
	assert.Equal(t, "***", MaskToken(""))
}
