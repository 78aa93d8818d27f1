package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/careroute/careroute/core"
	"github.com/careroute/careroute/logging"
	"github.com/careroute/careroute/model"
	"github.com/careroute/careroute/tool"
)

// DefaultMaxIterations bounds the tool-calling loop within one exchange.
const DefaultMaxIterations = 10

// ErrMidFlightCancel is returned by Cancel when the exchange has a backend or
// remote call in flight. The buffered history and active marker are discarded;
// the call itself cannot be interrupted.
var ErrMidFlightCancel = errors.New("exchange has a call in flight: buffered state discarded, in-flight call cannot be interrupted")

// Status is the terminal outcome of one exchange.
type Status string

const (
	// StatusCompleted means the exchange produced final content, including
	// the soft stop when the iteration cap is reached.
	StatusCompleted Status = "completed"
	// StatusFailed means a backend call failed and the exchange was aborted.
	StatusFailed Status = "failed"
)

// Result is the outcome of one exchange: the user-visible text of the final
// turn plus the accumulated tool-call records as separate metadata.
type Result struct {
	Text      string
	Status    Status
	ToolCalls []core.ToolCallRecord
}

// Options configures an Engine.
type Options struct {
	// Instruction is the system instruction sent with every backend call.
	Instruction string
	// Registry resolves and dispatches tool invocations. Nil means the
	// backend is offered no tools.
	Registry *tool.Registry
	// MaxIterations caps tool-calling turns per exchange. Defaults to
	// DefaultMaxIterations.
	MaxIterations int
	// Hooks receives lifecycle notifications during exchanges.
	Hooks *Hooks
	// Logger defaults to a no-op.
	Logger logging.Logger
}

// Engine drives the agentic loop: it buffers per-session history, calls the
// backend, dispatches any tool invocations the turn requests, folds the
// results back into the history, and repeats until the backend stops asking
// for tools or the iteration cap is hit. Public methods are safe for
// concurrent use; turns within one exchange are strictly sequential.
type Engine struct {
	backend       model.Model
	registry      *tool.Registry
	instruction   string
	maxIterations int
	hooks         *Hooks
	logger        logging.Logger

	mu         sync.Mutex
	histories  map[string][]core.Content
	activeRuns map[string]context.CancelFunc
}

// New constructs an Engine around a backend model.
func New(backend model.Model, optFns ...func(o *Options)) *Engine {
	opts := Options{
		MaxIterations: DefaultMaxIterations,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	return &Engine{
		backend:       backend,
		registry:      opts.Registry,
		instruction:   opts.Instruction,
		maxIterations: opts.MaxIterations,
		hooks:         opts.Hooks,
		logger:        opts.Logger,
		histories:     make(map[string][]core.Content),
		activeRuns:    make(map[string]context.CancelFunc),
	}
}

// Run executes one exchange for a session. A backend failure aborts the
// exchange and is reported as a failed result with the error; tool failures
// are folded into the history as ordinary tool results and never abort.
func (e *Engine) Run(ctx context.Context, sessionID, text string) (*Result, error) {
	ctx, cancel := context.WithCancel(core.WithExchangeID(ctx, sessionID))

	e.mu.Lock()
	e.activeRuns[sessionID] = cancel
	e.histories[sessionID] = append(e.histories[sessionID], core.NewTextContent("user", text))
	contents := cloneHistory(e.histories[sessionID])
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		if e.activeRuns[sessionID] != nil {
			delete(e.activeRuns, sessionID)
		}
		e.mu.Unlock()
	}()

	var (
		records  []core.ToolCallRecord
		lastText string
		tools    []model.ToolDefinition
	)
	if e.registry != nil {
		for _, d := range e.registry.Descriptors() {
			tools = append(tools, model.ToolDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			})
		}
	}

	e.notify(ctx, HookBeforeExchange, &HookContext{SessionID: sessionID})

	for iteration := 0; iteration < e.maxIterations; iteration++ {
		e.notify(ctx, HookBeforeTurn, &HookContext{SessionID: sessionID, Iteration: iteration})

		resp, err := e.backend.Generate(ctx, model.Request{
			Instruction: e.instruction,
			Contents:    contents,
			Tools:       tools,
		})
		if err != nil {
			e.logger.Error("engine.backend.failed", "session_id", sessionID, "iteration", iteration, "error", err.Error())
			return &Result{Status: StatusFailed, ToolCalls: records},
				fmt.Errorf("backend call failed: %w", err)
		}

		contents = append(contents, resp.Content)
		lastText = resp.Content.Text()
		e.notify(ctx, HookAfterTurn, &HookContext{SessionID: sessionID, Iteration: iteration})

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			e.commitHistory(sessionID, contents)
			result := &Result{Text: lastText, Status: StatusCompleted, ToolCalls: records}
			e.notify(ctx, HookAfterExchange, &HookContext{SessionID: sessionID, Result: result})
			e.logger.Info("engine.exchange.completed",
				"session_id", sessionID,
				"iterations", iteration+1,
				"tool_calls", len(records))
			return result, nil
		}

		// Tool phase: every call in the turn is dispatched and its result
		// paired back to the originating call id in one synthetic turn.
		responseParts := make([]core.Part, 0, len(calls))
		for _, call := range calls {
			output := e.dispatch(ctx, sessionID, call)
			records = append(records, core.NewToolCallRecord(call.Name, call.Arguments, output))
			responseParts = append(responseParts, core.FunctionResponsePart{
				FunctionResponse: core.FunctionResponse{
					ID:       call.ID,
					Name:     call.Name,
					Response: output,
				},
			})
		}
		contents = append(contents, core.Content{Role: "tool", Parts: responseParts})
	}

	// Soft stop: the cap was hit, so the last turn's content is returned
	// as-is rather than treated as an error.
	e.commitHistory(sessionID, contents)
	result := &Result{Text: lastText, Status: StatusCompleted, ToolCalls: records}
	e.notify(ctx, HookAfterExchange, &HookContext{SessionID: sessionID, Result: result})
	e.logger.Warn("engine.exchange.iteration_cap",
		"session_id", sessionID,
		"max_iterations", e.maxIterations)
	return result, nil
}

// Cancel discards the session's active marker and buffered history. If an
// exchange is in flight its context is cancelled, but the call already on the
// wire cannot be interrupted; that case is reported as ErrMidFlightCancel.
func (e *Engine) Cancel(sessionID string) error {
	e.mu.Lock()
	cancel, inFlight := e.activeRuns[sessionID]
	delete(e.activeRuns, sessionID)
	delete(e.histories, sessionID)
	e.mu.Unlock()

	if inFlight {
		cancel()
		return ErrMidFlightCancel
	}
	return nil
}

// History returns a copy of the buffered history for a session.
func (e *Engine) History(sessionID string) []core.Content {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneHistory(e.histories[sessionID])
}

// Reset drops the buffered history for a session without touching any
// in-flight exchange.
func (e *Engine) Reset(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.histories, sessionID)
}

func (e *Engine) dispatch(ctx context.Context, sessionID string, call core.FunctionCall) string {
	if err := e.hooks.fire(ctx, HookBeforeTool, &HookContext{
		SessionID: sessionID,
		Tool:      call.Name,
		Input:     call.Arguments,
	}); err != nil {
		// A veto folds into the history like any tool failure.
		return fmt.Sprintf("Error executing tool: %s", err)
	}

	var output string
	if e.registry == nil {
		output = fmt.Sprintf("unknown tool: %s", call.Name)
	} else {
		e.logger.Debug("engine.tool.dispatch", "tool", call.Name, "call_id", call.ID)
		output = e.registry.Dispatch(ctx, call.Name, call.Arguments)
	}

	e.notify(ctx, HookAfterTool, &HookContext{
		SessionID: sessionID,
		Tool:      call.Name,
		Input:     call.Arguments,
		Output:    output,
	})
	return output
}

// notify fires observational hooks; their errors are logged, never fatal.
func (e *Engine) notify(ctx context.Context, point HookPoint, hc *HookContext) {
	if err := e.hooks.fire(ctx, point, hc); err != nil {
		e.logger.Warn("engine.hook.failed", "point", string(point), "error", err.Error())
	}
}

// commitHistory replaces the session's buffered history unless Cancel already
// discarded it mid-exchange.
func (e *Engine) commitHistory(sessionID string, contents []core.Content) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, active := e.activeRuns[sessionID]; active {
		e.histories[sessionID] = contents
	}
}

func cloneHistory(contents []core.Content) []core.Content {
	out := make([]core.Content, len(contents))
	copy(out, contents)
	return out
}
