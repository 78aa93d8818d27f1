package model

import (
	"context"

	"github.com/careroute/careroute/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema object
}

// Request is the normalized backend input for one turn.
type Request struct {
	Instruction string           `json:"instruction"` // fixed system instruction
	Contents    []core.Content   `json:"contents"`    // full conversation history
	Tools       []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token accounting reported by the backend.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is one complete backend turn: plain content, zero or more
// function calls, or both.
type Response struct {
	Content    core.Content `json:"content"`
	StopReason string       `json:"stop_reason"` // "stop", "tool_calls", "length", ...
	Usage      *TokenUsage  `json:"usage,omitempty"`
}

// Info describes a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "anthropic", "openai", "stub", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface the engine requires of a backend. Generate
// performs exactly one turn; any error is fatal to the calling exchange.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns metadata about the model implementation.
	Info() Info
}
