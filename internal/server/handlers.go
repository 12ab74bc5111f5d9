package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kanopusdev/aurelis/internal/github"
	"github.com/kanopusdev/aurelis/internal/logger"
	"github.com/kanopusdev/aurelis/internal/models"
	"github.com/kanopusdev/aurelis/internal/orchestrator"
	"go.uber.org/zap"
)

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

// getStatus reports orchestrator, cache, and usage state.
func (s *Server) getStatus(c *gin.Context) {
	status := gin.H{
		"breakers": s.orch.BreakerStates(),
	}

	if s.cache != nil {
		status["cache"] = s.cache.Stats()
	}
	if s.tracker != nil {
		if summary, err := s.tracker.Summary(1); err == nil {
			status["usage_today"] = summary
			status["alerts"] = s.tracker.Alerts(summary)
		}
	}
	status["recent_logs"] = logger.GlobalBuffer.GetRecent(20)

	c.JSON(200, status)
}

func (s *Server) listModels(c *gin.Context) {
	resp := models.ModelsResponse{Object: "list"}
	for _, capability := range models.Catalog() {
		resp.Data = append(resp.Data, models.ModelObject{
			ID:      capability.ID,
			Object:  "model",
			OwnedBy: capability.OwnedBy,
		})
	}
	c.JSON(200, resp)
}

// chatCompletions routes an OpenAI-format request through the orchestrator.
func (s *Server) chatCompletions(c *gin.Context) {
	var wireReq models.ChatCompletionRequest
	if err := c.ShouldBindJSON(&wireReq); err != nil {
		c.JSON(400, models.ErrorResponse{Error: models.ErrorDetail{
			Message: "Invalid request: " + err.Error(),
			Type:    "invalid_request_error",
		}})
		return
	}

	req := toModelRequest(&wireReq)

	if wireReq.Stream {
		s.streamCompletion(c, req)
		return
	}

	resp, err := s.orch.Process(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(200, models.ChatCompletionResponse{
		ID:      "chatcmpl-" + resp.ID,
		Object:  "chat.completion",
		Created: resp.CreatedAt.Unix(),
		Model:   resp.Model,
		Choices: []models.ChatCompletionChoice{{
			Index:        0,
			Message:      models.ChatMessage{Role: "assistant", Content: resp.Content},
			FinishReason: resp.FinishReason,
		}},
		Usage: &resp.Usage,
	})
}

func (s *Server) streamCompletion(c *gin.Context, req *models.ModelRequest) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		s.writeError(c, fmt.Errorf("streaming unsupported by writer"))
		return
	}

	created := time.Now().Unix()
	wroteChunk := false

	resp, err := s.orch.ProcessStream(c.Request.Context(), req, func(delta string) error {
		chunk := models.ChatCompletionChunk{
			ID:      "chatcmpl-" + req.ID,
			Object:  "chat.completion.chunk",
			Created: created,
			Choices: []models.ChatCompletionChunkChoice{{
				Delta: models.ChatCompletionDelta{Content: delta},
			}},
		}
		if !wroteChunk {
			chunk.Choices[0].Delta.Role = "assistant"
			wroteChunk = true
		}
		return writeSSE(c, flusher, chunk)
	})
	if err != nil {
		if !wroteChunk {
			s.writeError(c, err)
			return
		}
		// Mid-stream failure: the status line is gone, log and stop.
		s.logger.Error("stream aborted", zap.Error(err))
		return
	}

	final := models.ChatCompletionChunk{
		ID:      "chatcmpl-" + req.ID,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   resp.Model,
		Choices: []models.ChatCompletionChunkChoice{{
			FinishReason: &resp.FinishReason,
		}},
		Usage: &resp.Usage,
	}
	writeSSE(c, flusher, final)
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeSSE(c *gin.Context, flusher http.Flusher, chunk models.ChatCompletionChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := 500
	errType := "api_error"

	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		status = 400
		errType = "invalid_request_error"
	case github.IsAuthError(err):
		status = 401
		errType = "authentication_error"
	case github.IsRateLimited(err):
		status = 429
		errType = "rate_limit_error"
	}

	c.JSON(status, models.ErrorResponse{Error: models.ErrorDetail{
		Message: err.Error(),
		Type:    errType,
	}})
}

// toModelRequest converts a wire request: leading system messages become the
// routed request's system prompt.
func toModelRequest(wire *models.ChatCompletionRequest) *models.ModelRequest {
	req := &models.ModelRequest{
		TaskType:    models.TaskGeneral,
		Model:       wire.Model,
		Temperature: wire.Temperature,
		MaxTokens:   wire.MaxTokens,
	}

	for _, m := range wire.Messages {
		if m.Role == "system" && len(req.Messages) == 0 {
			if req.System != "" {
				req.System += "\n"
			}
			req.System += m.Content
			continue
		}
		req.Messages = append(req.Messages, m)
	}

	// "auto" asks the router to pick by task type.
	if req.Model == "auto" {
		req.Model = ""
	}

	return req
}
