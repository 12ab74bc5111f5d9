package models

import (
	"time"
)

// TaskType classifies what kind of coding assistance a request needs.
// Routing picks a model based on this.
type TaskType string

const (
	TaskCodeGeneration   TaskType = "code_generation"
	TaskCodeExplanation  TaskType = "code_explanation"
	TaskErrorFixing      TaskType = "error_fixing"
	TaskRefactoring      TaskType = "refactoring"
	TaskDocumentation    TaskType = "documentation"
	TaskTestGeneration   TaskType = "test_generation"
	TaskCodeOptimization TaskType = "code_optimization"
	TaskSecurityAnalysis TaskType = "security_analysis"
	TaskGeneral          TaskType = "general"
)

// Valid reports whether the task type is one of the known values.
func (t TaskType) Valid() bool {
	switch t {
	case TaskCodeGeneration, TaskCodeExplanation, TaskErrorFixing,
		TaskRefactoring, TaskDocumentation, TaskTestGeneration,
		TaskCodeOptimization, TaskSecurityAnalysis, TaskGeneral:
		return true
	}
	return false
}

// ChatMessage is a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelRequest is a request routed to a GitHub-hosted model.
type ModelRequest struct {
	ID          string        `json:"id"`
	TaskType    TaskType      `json:"task_type"`
	Model       string        `json:"model,omitempty"` // explicit override, empty = route by task
	System      string        `json:"system,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	NoCache     bool          `json:"-"` // skip cache read, still refresh on write
}

// Usage holds token accounting for a completed request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelRequestStats describes how a request was served.
type ModelRequestStats struct {
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// ModelResponse is the result of a routed request.
type ModelResponse struct {
	ID           string            `json:"id"`
	Model        string            `json:"model"`
	Content      string            `json:"content"`
	FinishReason string            `json:"finish_reason,omitempty"`
	Usage        Usage             `json:"usage"`
	Cached       bool              `json:"cached"`
	Confidence   float64           `json:"confidence"`
	CreatedAt    time.Time         `json:"created_at"`
	Stats        ModelRequestStats `json:"stats"`
}
