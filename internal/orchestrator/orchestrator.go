package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kanopusdev/aurelis/internal/analytics"
	"github.com/kanopusdev/aurelis/internal/cache"
	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/kanopusdev/aurelis/internal/github"
	"github.com/kanopusdev/aurelis/internal/models"
	"go.uber.org/zap"
)

// ErrExhausted indicates every candidate model failed or was rejected by its
// circuit breaker.
var ErrExhausted = errors.New("all candidate models failed")

// ErrInvalidRequest marks a request rejected before any model was called:
// unknown model or task type, or no messages.
var ErrInvalidRequest = errors.New("invalid request")

// Inference is the upstream model API surface the orchestrator needs.
// Satisfied by *github.Client.
type Inference interface {
	Complete(ctx context.Context, req *models.ChatCompletionRequest) (*models.ChatCompletionResponse, error)
	Stream(ctx context.Context, req *models.ChatCompletionRequest, fn func(models.ChatCompletionChunk) error) (*models.Usage, error)
}

// Orchestrator routes requests to GitHub-hosted models by task type, with
// response caching, per-model circuit breaking, retry, and usage tracking.
type Orchestrator struct {
	client  Inference
	cache   *cache.Cache       // nil when caching is disabled
	tracker *analytics.Tracker // nil when analytics is disabled
	routes  map[models.TaskType][]string
	logger  *zap.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker

	sem    chan struct{}
	policy retryPolicy

	defaultTemp      float64
	defaultMaxTokens int
	timeout          time.Duration
}

// New creates an orchestrator. cache and tracker may be nil.
func New(client Inference, cfg *config.Config, c *cache.Cache, tracker *analytics.Tracker, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		client:   client,
		cache:    c,
		tracker:  tracker,
		routes:   buildRoutes(cfg.Models),
		logger:   logger,
		breakers: make(map[string]*Breaker),
		sem:      make(chan struct{}, cfg.Processing.ConcurrentRequests),
		policy: retryPolicy{
			maxAttempts:  cfg.Processing.MaxRetries,
			initialDelay: cfg.Processing.RetryDelay,
			maxDelay:     30 * time.Second,
			multiplier:   2.0,
			jitter:       true,
			// 429s move straight to the fallback model instead of
			// hammering the same one.
			retryIf: func(err error) bool {
				return github.IsRetryable(err) && !github.IsRateLimited(err)
			},
		},
		defaultTemp:      cfg.Models.Temperature,
		defaultMaxTokens: cfg.Models.MaxTokens,
		timeout:          cfg.Processing.Timeout,
	}
}

// Process routes a request through the candidate chain and returns the first
// successful response, consulting the cache per candidate.
func (o *Orchestrator) Process(ctx context.Context, req *models.ModelRequest) (*models.ModelResponse, error) {
	candidates, err := o.candidates(req)
	if err != nil {
		return nil, err
	}

	release, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	attempts := 0
	var lastErr error

	for _, model := range candidates {
		var key string
		if o.cache != nil {
			key = cache.Key(req, model)
			if !req.NoCache {
				if resp, ok := o.cache.Get(key); ok {
					o.logger.Debug("cache hit",
						zap.String("model", model),
						zap.String("task", string(req.TaskType)))
					if o.tracker != nil {
						o.tracker.Record(model, resp.Usage, true, false)
					}
					return resp, nil
				}
			}
		}

		breaker := o.breaker(model)
		if !breaker.Allow() {
			o.logger.Warn("circuit breaker open, skipping model",
				zap.String("model", model))
			lastErr = fmt.Errorf("circuit breaker open for %s", model)
			continue
		}

		attempts++
		wireReq := o.buildWire(req, model)

		apiResp, err := doWithRetry(ctx, o.policy, func() (*models.ChatCompletionResponse, error) {
			return o.client.Complete(ctx, wireReq)
		})
		if err != nil {
			breaker.RecordFailure()
			if o.tracker != nil {
				o.tracker.Record(model, models.Usage{}, false, true)
			}
			o.logger.Warn("model request failed",
				zap.String("model", model),
				zap.String("task", string(req.TaskType)),
				zap.Error(err))
			lastErr = err

			if github.IsAuthError(err) {
				// A bad token fails every model the same way.
				return nil, err
			}
			continue
		}

		breaker.RecordSuccess()
		resp := o.buildResponse(req, model, apiResp, attempts, time.Since(start))

		if o.cache != nil {
			o.cache.Put(key, resp)
		}
		if o.tracker != nil {
			o.tracker.Record(model, resp.Usage, false, false)
		}

		o.logger.Info("request completed",
			zap.String("model", model),
			zap.String("task", string(req.TaskType)),
			zap.Int("attempts", attempts),
			zap.Int("total_tokens", resp.Usage.TotalTokens),
			zap.Duration("duration", resp.Stats.Duration))
		return resp, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate models for task %q", req.TaskType)
	}
	return nil, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

// ProcessStream streams a response, invoking onDelta for each content
// fragment. Models that cannot stream are served with a single final delta.
// Streamed responses bypass the cache.
func (o *Orchestrator) ProcessStream(ctx context.Context, req *models.ModelRequest, onDelta func(delta string) error) (*models.ModelResponse, error) {
	candidates, err := o.candidates(req)
	if err != nil {
		return nil, err
	}

	release, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	attempts := 0
	var lastErr error

	for _, model := range candidates {
		breaker := o.breaker(model)
		if !breaker.Allow() {
			lastErr = fmt.Errorf("circuit breaker open for %s", model)
			continue
		}

		attempts++
		capability, _ := models.Lookup(model)

		if !capability.SupportsStreaming {
			wireReq := o.buildWire(req, model)
			apiResp, err := o.client.Complete(ctx, wireReq)
			if err != nil {
				breaker.RecordFailure()
				lastErr = err
				continue
			}
			breaker.RecordSuccess()

			resp := o.buildResponse(req, model, apiResp, attempts, time.Since(start))
			if o.tracker != nil {
				o.tracker.Record(model, resp.Usage, false, false)
			}
			if err := onDelta(resp.Content); err != nil {
				return nil, err
			}
			return resp, nil
		}

		wireReq := o.buildWire(req, model)
		var content strings.Builder
		finishReason := ""

		usage, err := o.client.Stream(ctx, wireReq, func(chunk models.ChatCompletionChunk) error {
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					content.WriteString(choice.Delta.Content)
					if err := onDelta(choice.Delta.Content); err != nil {
						return err
					}
				}
				if choice.FinishReason != nil {
					finishReason = *choice.FinishReason
				}
			}
			return nil
		})
		if err != nil {
			breaker.RecordFailure()
			if o.tracker != nil {
				o.tracker.Record(model, models.Usage{}, false, true)
			}
			lastErr = err
			if github.IsAuthError(err) {
				return nil, err
			}
			continue
		}

		breaker.RecordSuccess()

		resp := &models.ModelResponse{
			ID:           req.ID,
			Model:        model,
			Content:      content.String(),
			FinishReason: finishReason,
			Confidence:   confidence(finishReason),
			CreatedAt:    time.Now(),
			Stats:        models.ModelRequestStats{Attempts: attempts, Duration: time.Since(start)},
		}
		if usage != nil {
			resp.Usage = *usage
		} else {
			resp.Usage = o.estimateUsage(model, req, resp.Content)
		}
		if o.tracker != nil {
			o.tracker.Record(model, resp.Usage, false, false)
		}
		return resp, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate models for task %q", req.TaskType)
	}
	return nil, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

// BreakerStates reports the breaker state per model that has seen traffic.
func (o *Orchestrator) BreakerStates() map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()

	states := make(map[string]string, len(o.breakers))
	for model, b := range o.breakers {
		states[model] = b.State().String()
	}
	return states
}

// Routes exposes the effective routing table, for `aurelis models`.
func (o *Orchestrator) Routes() map[models.TaskType][]string {
	return o.routes
}

func (o *Orchestrator) candidates(req *models.ModelRequest) ([]string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.TaskType == "" {
		req.TaskType = models.TaskGeneral
	}
	if !req.TaskType.Valid() {
		return nil, fmt.Errorf("%w: unknown task type: %q", ErrInvalidRequest, req.TaskType)
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: request has no messages", ErrInvalidRequest)
	}

	if req.Model != "" {
		if _, ok := models.Lookup(req.Model); !ok {
			return nil, fmt.Errorf("%w: unknown model: %q", ErrInvalidRequest, req.Model)
		}
		return []string{req.Model}, nil
	}

	chain := o.routes[req.TaskType]
	if len(chain) == 0 {
		chain = o.routes[models.TaskGeneral]
	}
	return chain, nil
}

func (o *Orchestrator) breaker(model string) *Breaker {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.breakers[model]
	if !ok {
		b = newBreaker()
		o.breakers[model] = b
	}
	return b
}

func (o *Orchestrator) acquire(ctx context.Context) (func(), error) {
	select {
	case o.sem <- struct{}{}:
		return func() { <-o.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// buildWire converts a routed request into the wire format for one model,
// respecting its capabilities.
func (o *Orchestrator) buildWire(req *models.ModelRequest, model string) *models.ChatCompletionRequest {
	capability, _ := models.Lookup(model)

	wire := &models.ChatCompletionRequest{
		Model: model,
		User:  req.ID,
	}

	if req.System != "" {
		if capability.SupportsSystem {
			wire.Messages = append(wire.Messages, models.ChatMessage{Role: "system", Content: req.System})
		} else if len(req.Messages) > 0 {
			// o1-family models reject system messages; fold the
			// instructions into the first user turn.
			merged := req.Messages[0]
			merged.Content = req.System + "\n\n" + merged.Content
			wire.Messages = append(wire.Messages, merged)
			wire.Messages = append(wire.Messages, req.Messages[1:]...)
		}
	}
	if len(wire.Messages) == 0 {
		wire.Messages = append(wire.Messages, req.Messages...)
	} else if req.System != "" && capability.SupportsSystem {
		wire.Messages = append(wire.Messages, req.Messages...)
	}

	// Reasoning models also reject sampling parameters.
	if capability.SupportsSystem {
		temp := o.defaultTemp
		if req.Temperature != nil {
			temp = *req.Temperature
		}
		wire.Temperature = &temp
	}

	maxTokens := o.defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	if capability.MaxOutputTokens > 0 && maxTokens > capability.MaxOutputTokens {
		maxTokens = capability.MaxOutputTokens
	}
	wire.MaxTokens = &maxTokens

	return wire
}

func (o *Orchestrator) buildResponse(req *models.ModelRequest, model string, apiResp *models.ChatCompletionResponse, attempts int, duration time.Duration) *models.ModelResponse {
	choice := apiResp.Choices[0]

	resp := &models.ModelResponse{
		ID:           req.ID,
		Model:        model,
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Confidence:   confidence(choice.FinishReason),
		CreatedAt:    time.Now(),
		Stats:        models.ModelRequestStats{Attempts: attempts, Duration: duration},
	}
	if apiResp.Usage != nil {
		resp.Usage = *apiResp.Usage
	} else {
		resp.Usage = o.estimateUsage(model, req, resp.Content)
	}
	return resp
}

func (o *Orchestrator) estimateUsage(model string, req *models.ModelRequest, content string) models.Usage {
	in := models.CountRequestTokens(model, req)
	out := models.CountTokens(model, content)
	return models.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
}

// confidence maps the finish reason onto a coarse response quality score: a
// clean stop is trustworthy, a truncated answer is not.
func confidence(finishReason string) float64 {
	switch finishReason {
	case "stop":
		return 0.9
	case "length":
		return 0.5
	case "content_filter":
		return 0.2
	default:
		return 0.6
	}
}
