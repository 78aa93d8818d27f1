package careroute

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careroute/careroute/config"
	"github.com/careroute/careroute/core"
	"github.com/careroute/careroute/engine"
	"github.com/careroute/careroute/model"
	"github.com/careroute/careroute/session"
	"github.com/careroute/careroute/tool"
)

func textContent(text string) core.Content {
	return core.NewTextContent("assistant", text)
}

func toolCallContent(name, args string) core.Content {
	return core.Content{
		Role: "assistant",
		Parts: []core.Part{
			core.FunctionCallPart{
				FunctionCall: core.FunctionCall{ID: core.NewID(), Name: name, Arguments: args},
			},
		},
	}
}

func greeterProvider(t *testing.T) tool.Provider {
	t.Helper()
	return tool.NewFuncTool(
		"greet",
		"Greet a person by name.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
			"required":   []string{"name"},
		},
		func(_ context.Context, args map[string]any) (string, error) {
			name, _ := args["name"].(string)
			return "hello " + name, nil
		},
	)
}

func TestNewDefaultsToStubAndMemory(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)

	result, err := rt.HandleMessage(context.Background(), "conv_1", "ping")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusCompleted, result.Status)
	assert.NotEmpty(t, result.Text)
}

func TestNewRegistersProviders(t *testing.T) {
	rt, err := New(func(o *Options) {
		o.ToolProviders = []tool.Provider{greeterProvider(t)}
	})
	require.NoError(t, err)
	assert.True(t, rt.Registry().Has("greet"))
}

func TestNewFailsFastOnDuplicateTool(t *testing.T) {
	rt, err := New(func(o *Options) {
		o.ToolProviders = []tool.Provider{greeterProvider(t), greeterProvider(t)}
	})
	assert.Nil(t, rt)
	require.Error(t, err)

	var cfgErr *tool.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestHandleMessageDrivesToolLoop(t *testing.T) {
	backend := model.NewStubModel()
	backend.Enqueue(
		&model.Response{
			Content: toolCallContent("greet", `{"name":"Ada"}`),
		},
		&model.Response{
			Content: textContent("the tool said hello"),
		},
	)

	rt, err := New(func(o *Options) {
		o.Model = backend
		o.ToolProviders = []tool.Provider{greeterProvider(t)}
	})
	require.NoError(t, err)

	result, err := rt.HandleMessage(context.Background(), "conv_1", "greet Ada")
	require.NoError(t, err)
	assert.Equal(t, "the tool said hello", result.Text)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "hello Ada", result.ToolCalls[0].Output)
}

func TestHandleReplyConfirmsSlot(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)

	s := session.New("conv_1", "+15551234567")
	s.Payload["options"] = []any{"Mon 9am", "Tue 10am", "Wed 11am"}
	s.State = session.StateAwaitingResponse
	require.NoError(t, rt.Sessions().Save(s))

	updated, err := rt.HandleReply("+15551234567", "2")
	require.NoError(t, err)
	assert.Equal(t, session.StateSlotConfirmed, updated.State)
	assert.Equal(t, "Tue 10am", updated.Payload["selected_option"])

	// The persisted record reflects the transition.
	loaded, err := rt.Sessions().Load("conv_1")
	require.NoError(t, err)
	assert.Equal(t, session.StateSlotConfirmed, loaded.State)
}

func TestHandleReplyUnknownPhone(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)

	_, err = rt.HandleReply("+15550000000", "2")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestNewBuildsConfiguredSessionStore(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Session = config.SessionConfig{Backend: "file", Path: dir, TTL: "1h"}

	rt, err := New(func(o *Options) { o.Config = cfg })
	require.NoError(t, err)

	require.NoError(t, rt.Sessions().Save(session.New("conv_9", "")))

	loaded, err := rt.Sessions().Load("conv_9")
	require.NoError(t, err)
	assert.Equal(t, "conv_9", loaded.ID)
}
