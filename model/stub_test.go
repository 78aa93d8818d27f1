package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careroute/careroute/core"
)

func TestStubModelMappedResponse(t *testing.T) {
	m := NewStubModel()
	m.AddResponse("hello", "hi there")

	resp, err := m.Generate(context.Background(), Request{
		Contents: []core.Content{core.NewTextContent("user", "hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content.Text())
	assert.Equal(t, "stop", resp.StopReason)
}

func TestStubModelQueuedTurnsWin(t *testing.T) {
	m := NewStubModel()
	m.AddResponse("hello", "mapped")
	m.Enqueue(&Response{Content: core.NewTextContent("assistant", "scripted")})

	resp, err := m.Generate(context.Background(), Request{
		Contents: []core.Content{core.NewTextContent("user", "hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "scripted", resp.Content.Text())

	resp, err = m.Generate(context.Background(), Request{
		Contents: []core.Content{core.NewTextContent("user", "hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "mapped", resp.Content.Text())
	assert.Equal(t, 2, m.Calls())
}

func TestStubModelFail(t *testing.T) {
	m := NewStubModel()
	m.Fail(errors.New("backend down"))

	_, err := m.Generate(context.Background(), Request{})
	assert.Error(t, err)
}
