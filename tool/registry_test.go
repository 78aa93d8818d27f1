package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) *FuncTool {
	return NewFuncTool(
		name,
		"Echo the message back",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
			"required": []string{"message"},
		},
		func(_ context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("echo: %v", args["message"]), nil
		},
	)
}

type staticProvider struct{ tools []Tool }

func (p staticProvider) Tools() []Tool { return p.tools }

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	out := r.Dispatch(context.Background(), "echo", `{"message":"hi"}`)
	assert.Equal(t, "echo: hi", out)
}

func TestRegistryDuplicateNameFailsRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("X")))

	err := r.Register(staticProvider{tools: []Tool{echoTool("X")}})
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, `duplicate tool name "X"`)
}

func TestRegistryDuplicateAcrossProviders(t *testing.T) {
	r := NewRegistry()

	err := r.Register(
		staticProvider{tools: []Tool{echoTool("X")}},
		staticProvider{tools: []Tool{echoTool("X")}},
	)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRegistryUnknownToolReturnsText(t *testing.T) {
	r := NewRegistry()

	out := r.Dispatch(context.Background(), "does_not_exist", "{}")
	assert.Contains(t, out, "unknown tool: does_not_exist")
}

func TestRegistryHandlerErrorBecomesText(t *testing.T) {
	r := NewRegistry()
	failing := NewFuncTool("boom", "always fails", nil,
		func(context.Context, map[string]any) (string, error) {
			return "", errors.New("backend unavailable")
		})
	require.NoError(t, r.Register(failing))

	out := r.Dispatch(context.Background(), "boom", "{}")
	assert.True(t, strings.HasPrefix(out, "Error executing tool:"), out)
	assert.Contains(t, out, "backend unavailable")
}

func TestRegistryHandlerPanicBecomesText(t *testing.T) {
	r := NewRegistry()
	panicking := NewFuncTool("panic", "always panics", nil,
		func(context.Context, map[string]any) (string, error) {
			panic("nope")
		})
	require.NoError(t, r.Register(panicking))

	out := r.Dispatch(context.Background(), "panic", "{}")
	assert.Contains(t, out, "Error executing tool:")
	assert.Contains(t, out, "nope")
}

func TestRegistryValidatesArguments(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	out := r.Dispatch(context.Background(), "echo", `{"message":42}`)
	assert.Contains(t, out, "parameter validation failed")

	out = r.Dispatch(context.Background(), "echo", `{`)
	assert.Contains(t, out, "invalid arguments")
}

func TestRegistryMalformedSchemaFailsRegistration(t *testing.T) {
	r := NewRegistry()
	bad := NewFuncTool("bad", "broken schema",
		map[string]any{"type": 12345},
		func(context.Context, map[string]any) (string, error) { return "", nil })

	err := r.Register(bad)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRegistryDescriptorsSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("zeta"), echoTool("alpha")))

	descs := r.Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, "alpha", descs[0].Name)
	assert.Equal(t, "zeta", descs[1].Name)
	assert.True(t, r.Has("alpha"))
	assert.False(t, r.Has("omega"))
}

func TestFuncToolFromStruct(t *testing.T) {
	type args struct {
		Message string `json:"message" description:"Text to echo"`
	}
	ft := NewFuncToolFromStruct("echo", "Echo", args{},
		func(_ context.Context, a map[string]any) (string, error) {
			return a["message"].(string), nil
		})

	schema := ft.Parameters()
	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "message")

	r := NewRegistry()
	require.NoError(t, r.Register(ft))
	assert.Equal(t, "hello", r.Dispatch(context.Background(), "echo", `{"message":"hello"}`))
}
