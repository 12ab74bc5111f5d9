package github

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/kanopusdev/aurelis/internal/models"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Client talks to the GitHub Models inference endpoint. All calls carry the
// single GitHub access token as a Bearer credential.
type Client struct {
	endpoint   string
	apiVersion string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an inference client. The token must already be resolved.
func NewClient(cfg config.GitHubConfig, token string, logger *zap.Logger) *Client {
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiVersion: cfg.APIVersion,
		token:      token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Complete sends a non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, req *models.ChatCompletionRequest) (*models.ChatCompletionResponse, error) {
	req.Stream = false

	body, status, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.apiError(status, body)
	}

	var resp models.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &APIError{StatusCode: status, Message: "response contained no choices"}
	}
	return &resp, nil
}

// Stream sends a streaming request and invokes fn for every SSE chunk.
// Returns aggregate usage when the endpoint reports it in the final chunk.
func (c *Client) Stream(ctx context.Context, req *models.ChatCompletionRequest, fn func(models.ChatCompletionChunk) error) (*models.Usage, error) {
	req.Stream = true

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, c.apiError(resp.StatusCode, body)
	}

	var usage *models.Usage
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		chunk := parseChunk(payload)
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if err := fn(chunk); err != nil {
			return usage, err
		}
	}
	if err := scanner.Err(); err != nil {
		return usage, fmt.Errorf("stream read failed: %w", err)
	}

	c.logger.Debug("stream finished",
		zap.String("model", req.Model),
		zap.Duration("duration", time.Since(start)))
	return usage, nil
}

// parseChunk extracts the fields Aurelis needs from one SSE payload. Field
// layout varies slightly between hosted providers, so parse leniently with
// gjson instead of strict decoding.
func parseChunk(payload string) models.ChatCompletionChunk {
	chunk := models.ChatCompletionChunk{
		ID:      gjson.Get(payload, "id").String(),
		Object:  gjson.Get(payload, "object").String(),
		Created: gjson.Get(payload, "created").Int(),
		Model:   gjson.Get(payload, "model").String(),
	}

	choice := gjson.Get(payload, "choices.0")
	if choice.Exists() {
		cc := models.ChatCompletionChunkChoice{
			Index: int(choice.Get("index").Int()),
			Delta: models.ChatCompletionDelta{
				Role:    choice.Get("delta.role").String(),
				Content: choice.Get("delta.content").String(),
			},
		}
		if fr := choice.Get("finish_reason"); fr.Exists() && fr.Type != gjson.Null {
			reason := fr.String()
			cc.FinishReason = &reason
		}
		chunk.Choices = append(chunk.Choices, cc)
	}

	if u := gjson.Get(payload, "usage"); u.Exists() && u.IsObject() {
		chunk.Usage = &models.Usage{
			PromptTokens:     int(u.Get("prompt_tokens").Int()),
			CompletionTokens: int(u.Get("completion_tokens").Int()),
			TotalTokens:      int(u.Get("total_tokens").Int()),
		}
	}

	return chunk
}

// Ping performs a cheap reachability check against the endpoint. Any HTTP
// response counts as reachable; only transport errors fail.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("endpoint unreachable: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &APIError{StatusCode: resp.StatusCode, Message: "token rejected by endpoint"}
	}
	return nil
}

func (c *Client) post(ctx context.Context, req *models.ChatCompletionRequest) ([]byte, int, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, reqBody)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "aurelis/1.0")
	if c.apiVersion != "" {
		httpReq.Header.Set("api-version", c.apiVersion)
	}
	return httpReq, nil
}

func (c *Client) apiError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	apiErr.Message = gjson.GetBytes(body, "error.message").String()
	apiErr.Type = gjson.GetBytes(body, "error.type").String()
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	c.logger.Warn("inference endpoint returned error",
		zap.Int("status", status),
		zap.String("type", apiErr.Type),
		zap.String("message", apiErr.Message))
	return apiErr
}
