package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/kanopusdev/aurelis/internal/github"
	"github.com/kanopusdev/aurelis/internal/models"
	"github.com/kanopusdev/aurelis/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeInference answers every completion with a canned response, failing
// models listed in failures.
type fakeInference struct {
	failures map[string]error
	lastReq  *models.ChatCompletionRequest
}

func (f *fakeInference) Complete(ctx context.Context, req *models.ChatCompletionRequest) (*models.ChatCompletionResponse, error) {
	f.lastReq = req
	if err, ok := f.failures[req.Model]; ok {
		return nil, err
	}
	return &models.ChatCompletionResponse{
		ID:    "cmpl-test",
		Model: req.Model,
		Choices: []models.ChatCompletionChoice{{
			Message:      models.ChatMessage{Role: "assistant", Content: "answer from " + req.Model},
			FinishReason: "stop",
		}},
		Usage: &models.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeInference) Stream(ctx context.Context, req *models.ChatCompletionRequest, fn func(models.ChatCompletionChunk) error) (*models.Usage, error) {
	f.lastReq = req
	if err, ok := f.failures[req.Model]; ok {
		return nil, err
	}
	for _, delta := range []string{"streamed ", "answer"} {
		if err := fn(models.ChatCompletionChunk{
			Choices: []models.ChatCompletionChunkChoice{{Delta: models.ChatCompletionDelta{Content: delta}}},
		}); err != nil {
			return nil, err
		}
	}
	reason := "stop"
	fn(models.ChatCompletionChunk{
		Choices: []models.ChatCompletionChunkChoice{{FinishReason: &reason}},
	})
	return &models.Usage{PromptTokens: 8, CompletionTokens: 2, TotalTokens: 10}, nil
}

func serverConfig() *config.Config {
	return &config.Config{
		Models: config.ModelsConfig{
			Primary:     models.ModelGPT4o,
			Fallback:    models.ModelGPT4oMini,
			Temperature: 0.2,
			MaxTokens:   1024,
		},
		Processing: config.ProcessingConfig{
			ConcurrentRequests: 2,
			MaxRetries:         1,
			RetryDelay:         time.Millisecond,
			Timeout:            5 * time.Second,
		},
		Server: config.ServerConfig{Mode: "test"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, fake *fakeInference) *Server {
	t.Helper()
	orch := orchestrator.New(fake, cfg, nil, nil, zap.NewNop())
	return New(cfg, zap.NewNop(), orch, nil, nil)
}

func doRequest(s *Server, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Set(k, v)
		}
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, serverConfig(), &fakeInference{})

	w := doRequest(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListModels(t *testing.T) {
	s := newTestServer(t, serverConfig(), &fakeInference{})

	w := doRequest(s, http.MethodGet, "/v1/models", "", nil)
	require.Equal(t, 200, w.Code)

	var resp models.ModelsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	assert.Len(t, resp.Data, len(models.Catalog()))

	ids := make(map[string]bool, len(resp.Data))
	for _, m := range resp.Data {
		assert.Equal(t, "model", m.Object)
		ids[m.ID] = true
	}
	assert.True(t, ids[models.ModelGPT4o])
	assert.True(t, ids[models.ModelCodestral])
}

func TestChatCompletions_NonStreaming(t *testing.T) {
	fake := &fakeInference{}
	s := newTestServer(t, serverConfig(), fake)

	w := doRequest(s, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4o","messages":[{"role":"system","content":"be terse"},{"role":"user","content":"hi"}]}`, nil)
	require.Equal(t, 200, w.Code)

	var resp models.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, models.ModelGPT4o, resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "answer from gpt-4o", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	// The leading system message became a proper system turn upstream.
	require.NotNil(t, fake.lastReq)
	require.NotEmpty(t, fake.lastReq.Messages)
	assert.Equal(t, "system", fake.lastReq.Messages[0].Role)
	assert.Equal(t, "be terse", fake.lastReq.Messages[0].Content)
}

func TestChatCompletions_AutoModelRoutes(t *testing.T) {
	fake := &fakeInference{}
	s := newTestServer(t, serverConfig(), fake)

	w := doRequest(s, http.MethodPost, "/v1/chat/completions",
		`{"model":"auto","messages":[{"role":"user","content":"hi"}]}`, nil)
	require.Equal(t, 200, w.Code)

	var resp models.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ModelGPT4o, resp.Model)
}

func TestChatCompletions_MalformedBodyRejected(t *testing.T) {
	s := newTestServer(t, serverConfig(), &fakeInference{})

	w := doRequest(s, http.MethodPost, "/v1/chat/completions", `{"model":}`, nil)
	assert.Equal(t, 400, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_request_error", resp.Error.Type)
}

func TestChatCompletions_InvalidRequestMapsTo400(t *testing.T) {
	s := newTestServer(t, serverConfig(), &fakeInference{})

	t.Run("unknown model", func(t *testing.T) {
		w := doRequest(s, http.MethodPost, "/v1/chat/completions",
			`{"model":"gpt-99","messages":[{"role":"user","content":"hi"}]}`, nil)
		assert.Equal(t, 400, w.Code)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_request_error", resp.Error.Type)
		assert.Contains(t, resp.Error.Message, "unknown model")
	})

	t.Run("system-only messages", func(t *testing.T) {
		w := doRequest(s, http.MethodPost, "/v1/chat/completions",
			`{"model":"gpt-4o","messages":[{"role":"system","content":"be terse"}]}`, nil)
		assert.Equal(t, 400, w.Code)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_request_error", resp.Error.Type)
	})
}

func TestChatCompletions_AuthErrorMapsTo401(t *testing.T) {
	fake := &fakeInference{failures: map[string]error{
		models.ModelGPT4o: &github.APIError{StatusCode: http.StatusUnauthorized, Message: "bad credentials"},
	}}
	s := newTestServer(t, serverConfig(), fake)

	w := doRequest(s, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`, nil)
	assert.Equal(t, 401, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "authentication_error", resp.Error.Type)
}

func TestChatCompletions_Streaming(t *testing.T) {
	s := newTestServer(t, serverConfig(), &fakeInference{})

	w := doRequest(s, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4o","stream":true,"messages":[{"role":"user","content":"hi"}]}`, nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `"content":"streamed "`)
	assert.Contains(t, body, `"content":"answer"`)
	assert.Contains(t, body, `"finish_reason":"stop"`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]"))

	// First chunk carries the assistant role, later ones do not.
	first := strings.SplitN(body, "\n", 2)[0]
	assert.Contains(t, first, `"role":"assistant"`)
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := serverConfig()
	cfg.Security.APIKey = "secret-key"
	s := newTestServer(t, cfg, &fakeInference{})

	t.Run("missing key rejected", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/v1/models", "", nil)
		assert.Equal(t, 401, w.Code)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		h := http.Header{}
		h.Set("Authorization", "Bearer wrong")
		w := doRequest(s, http.MethodGet, "/v1/models", "", h)
		assert.Equal(t, 401, w.Code)
	})

	t.Run("valid key accepted", func(t *testing.T) {
		h := http.Header{}
		h.Set("Authorization", "Bearer secret-key")
		w := doRequest(s, http.MethodGet, "/v1/models", "", h)
		assert.Equal(t, 200, w.Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/health", "", nil)
		assert.Equal(t, 200, w.Code)
	})
}

func TestGetStatus(t *testing.T) {
	s := newTestServer(t, serverConfig(), &fakeInference{})

	w := doRequest(s, http.MethodGet, "/status", "", nil)
	require.Equal(t, 200, w.Code)

	var status map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Contains(t, status, "breakers")
	assert.Contains(t, status, "recent_logs")
}
