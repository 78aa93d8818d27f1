// Package tool implements the capability registry: pluggable providers expose
// named tools with JSON-schema described arguments, and the registry dispatches
// backend-issued function calls to them with uniform error folding so a failed
// or unknown tool surfaces as result text instead of tearing down an exchange.
package tool

import (
	"context"
	"fmt"
)

// Tool is one named capability callable by the loop engine. Implementations
// are treated as black boxes: they receive only the call context and the
// decoded arguments, and report their outcome as text.
//
// Tool implementations should:
//   - use unique snake_case names
//   - describe themselves well enough for a model to pick them unaided
//   - declare a JSON Schema object for their arguments
//   - be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns the human-readable description handed to the model.
	Description() string

	// Parameters returns a JSON Schema object describing accepted arguments.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments and returns result text.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Provider is a capability module contributing one or more tools at
// registration time. Providers hold no shared state with the engine beyond
// the arguments of each call.
type Provider interface {
	Tools() []Tool
}

// Descriptor is the registration-time view of a tool: what the backend needs
// to decide when to call it.
type Descriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ConfigError reports a fatal registration-time misconfiguration such as a
// duplicate tool name or an uncompilable schema. It is never produced during
// dispatch.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "tool configuration error: " + e.Message
}

// ToolError represents a failure during tool execution. Dispatch folds it
// into result text; callers outside the registry normally never see it.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}
