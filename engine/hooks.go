package engine

import "context"

// HookPoint identifies a lifecycle point within an exchange where hooks run.
type HookPoint string

const (
	// HookBeforeExchange fires once when an exchange starts.
	HookBeforeExchange HookPoint = "before_exchange"
	// HookAfterExchange fires once when an exchange terminates, with the
	// result attached.
	HookAfterExchange HookPoint = "after_exchange"
	// HookBeforeTurn fires before every backend call.
	HookBeforeTurn HookPoint = "before_turn"
	// HookAfterTurn fires after every successful backend call.
	HookAfterTurn HookPoint = "after_turn"
	// HookBeforeTool fires before a tool dispatch. An error returned here
	// vetoes the dispatch and becomes the tool result text.
	HookBeforeTool HookPoint = "before_tool"
	// HookAfterTool fires after a tool dispatch with the output attached.
	HookAfterTool HookPoint = "after_tool"
)

// HookContext carries the state available to a hook at its point.
type HookContext struct {
	SessionID string
	Iteration int

	// Tool, Input and Output are set on tool hooks.
	Tool   string
	Input  string
	Output string

	// Result is set on HookAfterExchange.
	Result *Result
}

// Hook is an execution lifecycle extension. Implementations must be fast and
// safe for concurrent use; they run synchronously inside the loop.
type Hook interface {
	Point() HookPoint
	Execute(ctx context.Context, hc *HookContext) error
}

// FunctionHook adapts a plain function to the Hook interface.
type FunctionHook struct {
	point HookPoint
	fn    func(ctx context.Context, hc *HookContext) error
}

// NewFunctionHook wraps fn as a hook at the given point.
func NewFunctionHook(point HookPoint, fn func(ctx context.Context, hc *HookContext) error) *FunctionHook {
	return &FunctionHook{point: point, fn: fn}
}

// Point implements Hook.
func (h *FunctionHook) Point() HookPoint { return h.point }

// Execute implements Hook.
func (h *FunctionHook) Execute(ctx context.Context, hc *HookContext) error {
	return h.fn(ctx, hc)
}

// Hooks routes lifecycle notifications to registered hooks in registration
// order. Register before serving; firing is safe for concurrent use once
// registration is complete.
type Hooks struct {
	byPoint map[HookPoint][]Hook
}

// NewHooks returns an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{byPoint: make(map[HookPoint][]Hook)}
}

// Register adds a hook at its declared point.
func (h *Hooks) Register(hooks ...Hook) {
	for _, hook := range hooks {
		h.byPoint[hook.Point()] = append(h.byPoint[hook.Point()], hook)
	}
}

// fire runs every hook at the point, stopping at the first error.
func (h *Hooks) fire(ctx context.Context, point HookPoint, hc *HookContext) error {
	if h == nil {
		return nil
	}
	for _, hook := range h.byPoint[point] {
		if err := hook.Execute(ctx, hc); err != nil {
			return err
		}
	}
	return nil
}
