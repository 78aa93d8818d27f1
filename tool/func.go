package tool

import (
	"context"

	"github.com/careroute/careroute/internal/util"
)

// FuncTool adapts a plain Go function into a Tool. It carries the declared
// schema verbatim; argument validation happens centrally in the registry.
//
// A FuncTool has no mutable state after construction and is safe for
// concurrent use.
type FuncTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (string, error)
}

// NewFuncTool constructs a FuncTool from an explicit schema and function.
//
// Example:
//
//	slots := NewFuncTool(
//	  "find_appointment_slots",
//	  "Find open appointment slots for a specialty",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "specialty": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"specialty"},
//	  },
//	  func(ctx context.Context, args map[string]any) (string, error) {
//	    return lookup(ctx, args["specialty"].(string))
//	  },
//	)
func NewFuncTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (string, error),
) *FuncTool {
	return &FuncTool{name: name, description: description, parameters: parameters, fn: fn}
}

// NewFuncToolFromStruct derives the parameter schema from a struct's json and
// description tags. Convenience for simple argument containers.
func NewFuncToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (string, error),
) *FuncTool {
	return NewFuncTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the unique tool name.
func (t *FuncTool) Name() string { return t.name }

// Description returns the description exposed to the model.
func (t *FuncTool) Description() string { return t.description }

// Parameters returns the declared JSON schema.
func (t *FuncTool) Parameters() map[string]any { return t.parameters }

// Call invokes the wrapped function.
func (t *FuncTool) Call(ctx context.Context, args map[string]any) (string, error) {
	return t.fn(ctx, args)
}

// Tools implements Provider so a single FuncTool can be registered directly.
func (t *FuncTool) Tools() []Tool { return []Tool{t} }
