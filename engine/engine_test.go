package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careroute/careroute/core"
	"github.com/careroute/careroute/model"
	"github.com/careroute/careroute/tool"
)

func toolCallTurn(name, args string) *model.Response {
	return &model.Response{
		Content: core.Content{
			Role: "assistant",
			Parts: []core.Part{
				core.FunctionCallPart{
					FunctionCall: core.FunctionCall{ID: core.NewID(), Name: name, Arguments: args},
				},
			},
		},
		StopReason: "tool_use",
	}
}

func textTurn(text string) *model.Response {
	return &model.Response{
		Content:    core.NewTextContent("assistant", text),
		StopReason: "stop",
	}
}

func echoRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tool.NewFuncTool(
		"echo",
		"Echo the message back.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"message": map[string]any{"type": "string"}},
			"required":   []string{"message"},
		},
		func(_ context.Context, args map[string]any) (string, error) {
			msg, _ := args["message"].(string)
			return "echo: " + msg, nil
		},
	)))
	return reg
}

func TestRunPlainExchange(t *testing.T) {
	backend := model.NewStubModel()
	backend.AddResponse("hello", "hi there")

	eng := New(backend)
	result, err := eng.Run(context.Background(), "conv_1", "hello")
	require.NoError(t, err)

	assert.Equal(t, "hi there", result.Text)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Empty(t, result.ToolCalls)

	// User turn plus assistant turn buffered for the next exchange.
	history := eng.History("conv_1")
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
}

func TestRunToolCallingLoop(t *testing.T) {
	backend := model.NewStubModel()
	backend.Enqueue(
		toolCallTurn("echo", `{"message":"ping"}`),
		textTurn("the tool said: echo: ping"),
	)

	eng := New(backend, func(o *Options) { o.Registry = echoRegistry(t) })
	result, err := eng.Run(context.Background(), "conv_1", "please echo ping")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "the tool said: echo: ping", result.Text)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "echo", result.ToolCalls[0].Tool)
	assert.Equal(t, "echo: ping", result.ToolCalls[0].Output)
	assert.Equal(t, 2, backend.Calls())

	// The synthetic tool turn sits between the two assistant turns.
	history := eng.History("conv_1")
	require.Len(t, history, 4)
	assert.Equal(t, "tool", history[2].Role)
	responses := history[2].FunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "echo: ping", responses[0].Response)
}

// alwaysToolModel requests the same tool on every turn, forcing the cap.
type alwaysToolModel struct {
	calls int
}

func (m *alwaysToolModel) Generate(ctx context.Context, _ model.Request) (*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls++
	return toolCallTurn("echo", `{"message":"again"}`), nil
}

func (m *alwaysToolModel) Info() model.Info {
	return model.Info{Name: "always-tool", Provider: "test", SupportsTools: true}
}

func TestRunStopsAtIterationCap(t *testing.T) {
	backend := &alwaysToolModel{}
	eng := New(backend, func(o *Options) {
		o.Registry = echoRegistry(t)
		o.MaxIterations = 3
	})

	result, err := eng.Run(context.Background(), "conv_1", "loop forever")
	require.NoError(t, err)

	assert.Equal(t, 3, backend.calls)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Len(t, result.ToolCalls, 3)
	// The last turn carried no text, and the cap is not an error.
	assert.Empty(t, result.Text)
}

func TestRunDefaultIterationCap(t *testing.T) {
	backend := &alwaysToolModel{}
	eng := New(backend, func(o *Options) { o.Registry = echoRegistry(t) })

	_, err := eng.Run(context.Background(), "conv_1", "loop forever")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, backend.calls)
}

func TestRunBackendFailureIsFatal(t *testing.T) {
	backend := model.NewStubModel()
	backend.Fail(errors.New("model unavailable"))

	eng := New(backend)
	result, err := eng.Run(context.Background(), "conv_1", "hello")

	require.Error(t, err)
	assert.ErrorContains(t, err, "backend call failed")
	require.NotNil(t, result)
	assert.Equal(t, StatusFailed, result.Status)
}

func TestRunToolFailureIsRecoverable(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tool.NewFuncTool(
		"flaky",
		"Always fails.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(context.Context, map[string]any) (string, error) {
			return "", errors.New("boom")
		},
	)))

	backend := model.NewStubModel()
	backend.Enqueue(
		toolCallTurn("flaky", `{}`),
		textTurn("the tool failed, sorry"),
	)

	eng := New(backend, func(o *Options) { o.Registry = reg })
	result, err := eng.Run(context.Background(), "conv_1", "try the tool")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "the tool failed, sorry", result.Text)
	require.Len(t, result.ToolCalls, 1)
	assert.Contains(t, result.ToolCalls[0].Output, "Error executing tool")
}

func TestRunUnknownToolCompletes(t *testing.T) {
	backend := model.NewStubModel()
	backend.Enqueue(
		toolCallTurn("no_such_tool", `{}`),
		textTurn("I cannot do that"),
	)

	eng := New(backend, func(o *Options) { o.Registry = echoRegistry(t) })
	result, err := eng.Run(context.Background(), "conv_1", "use the missing tool")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	require.Len(t, result.ToolCalls, 1)
	assert.Contains(t, result.ToolCalls[0].Output, "unknown tool")
}

func TestRunExchangeIDReachesTools(t *testing.T) {
	var seen string
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tool.NewFuncTool(
		"whoami",
		"Report the session.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx context.Context, _ map[string]any) (string, error) {
			seen = core.ExchangeID(ctx)
			return "ok", nil
		},
	)))

	backend := model.NewStubModel()
	backend.Enqueue(toolCallTurn("whoami", `{}`), textTurn("done"))

	eng := New(backend, func(o *Options) { o.Registry = reg })
	_, err := eng.Run(context.Background(), "conv_42", "who am I")
	require.NoError(t, err)
	assert.Equal(t, "conv_42", seen)
}

func TestRunTruncatesRecordedToolOutput(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}

	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tool.NewFuncTool(
		"verbose",
		"Return a long result.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(context.Context, map[string]any) (string, error) {
			return string(long), nil
		},
	)))

	backend := model.NewStubModel()
	backend.Enqueue(toolCallTurn("verbose", `{}`), textTurn("done"))

	eng := New(backend, func(o *Options) { o.Registry = reg })
	result, err := eng.Run(context.Background(), "conv_1", "go")
	require.NoError(t, err)

	require.Len(t, result.ToolCalls, 1)
	assert.Less(t, len(result.ToolCalls[0].Output), len(long))

	// The full output still reaches the backend untruncated.
	history := eng.History("conv_1")
	responses := history[2].FunctionResponses()
	require.Len(t, responses, 1)
	assert.Len(t, responses[0].Response, len(long))
}

func TestHistoryAccumulatesAcrossExchanges(t *testing.T) {
	backend := model.NewStubModel()
	eng := New(backend)
	ctx := context.Background()

	_, err := eng.Run(ctx, "conv_1", "first")
	require.NoError(t, err)
	_, err = eng.Run(ctx, "conv_1", "second")
	require.NoError(t, err)

	history := eng.History("conv_1")
	require.Len(t, history, 4)
	assert.Equal(t, "first", history[0].Text())
	assert.Equal(t, "second", history[2].Text())

	// Sessions are independent.
	assert.Empty(t, eng.History("conv_2"))
}

func TestCancelIdleSession(t *testing.T) {
	backend := model.NewStubModel()
	eng := New(backend)

	_, err := eng.Run(context.Background(), "conv_1", "hello")
	require.NoError(t, err)

	require.NoError(t, eng.Cancel("conv_1"))
	assert.Empty(t, eng.History("conv_1"))
}

func TestCancelMidFlight(t *testing.T) {
	started := make(chan struct{})
	backend := &blockingModel{started: started}
	eng := New(backend)

	done := make(chan error, 1)
	go func() {
		_, err := eng.Run(context.Background(), "conv_1", "hang")
		done <- err
	}()

	<-started
	err := eng.Cancel("conv_1")
	assert.ErrorIs(t, err, ErrMidFlightCancel)

	runErr := <-done
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, context.Canceled)
	assert.Empty(t, eng.History("conv_1"))
}

// blockingModel signals when Generate starts and then waits for cancellation.
type blockingModel struct {
	started chan struct{}
}

func (m *blockingModel) Generate(ctx context.Context, _ model.Request) (*model.Response, error) {
	close(m.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (m *blockingModel) Info() model.Info {
	return model.Info{Name: "blocking", Provider: "test"}
}

func TestHooksFireAroundExchange(t *testing.T) {
	backend := model.NewStubModel()
	backend.Enqueue(toolCallTurn("echo", `{"message":"hi"}`), textTurn("done"))

	var points []HookPoint
	var final *Result
	hooks := NewHooks()
	for _, p := range []HookPoint{HookBeforeExchange, HookBeforeTurn, HookAfterTurn, HookBeforeTool, HookAfterTool} {
		point := p
		hooks.Register(NewFunctionHook(point, func(_ context.Context, _ *HookContext) error {
			points = append(points, point)
			return nil
		}))
	}
	hooks.Register(NewFunctionHook(HookAfterExchange, func(_ context.Context, hc *HookContext) error {
		points = append(points, HookAfterExchange)
		final = hc.Result
		return nil
	}))

	eng := New(backend, func(o *Options) {
		o.Registry = echoRegistry(t)
		o.Hooks = hooks
	})
	result, err := eng.Run(context.Background(), "conv_1", "hi")
	require.NoError(t, err)

	assert.Equal(t, []HookPoint{
		HookBeforeExchange,
		HookBeforeTurn, HookAfterTurn,
		HookBeforeTool, HookAfterTool,
		HookBeforeTurn, HookAfterTurn,
		HookAfterExchange,
	}, points)
	assert.Same(t, result, final)
}

func TestBeforeToolHookVetoesDispatch(t *testing.T) {
	dispatched := false
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tool.NewFuncTool(
		"guarded",
		"Should never run.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(context.Context, map[string]any) (string, error) {
			dispatched = true
			return "ran", nil
		},
	)))

	hooks := NewHooks()
	hooks.Register(NewFunctionHook(HookBeforeTool, func(_ context.Context, hc *HookContext) error {
		return fmt.Errorf("tool %s not permitted", hc.Tool)
	}))

	backend := model.NewStubModel()
	backend.Enqueue(toolCallTurn("guarded", `{}`), textTurn("understood"))

	eng := New(backend, func(o *Options) {
		o.Registry = reg
		o.Hooks = hooks
	})
	result, err := eng.Run(context.Background(), "conv_1", "run the guarded tool")
	require.NoError(t, err)

	assert.False(t, dispatched)
	require.Len(t, result.ToolCalls, 1)
	assert.Contains(t, result.ToolCalls[0].Output, "not permitted")
}
