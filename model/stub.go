package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/careroute/careroute/core"
)

// StubModel is an in-memory Model for tests and examples. Turns can be
// scripted with Enqueue (consumed in order) or mapped from the last user
// input with AddResponse; unscripted prompts get a canned echo.
type StubModel struct {
	mu        sync.Mutex
	info      Info
	queued    []*Response
	responses map[string]string
	err       error
	calls     int
}

// NewStubModel constructs a StubModel with tool support advertised.
func NewStubModel() *StubModel {
	return &StubModel{
		info:      Info{Name: "stub", Provider: "stub", SupportsTools: true},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion for an exact input prompt.
func (m *StubModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue scripts the next turns in order. Queued responses win over mapped ones.
func (m *StubModel) Enqueue(responses ...*Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, responses...)
}

// Fail makes every subsequent Generate call return err.
func (m *StubModel) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Generate has been invoked.
func (m *StubModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Model.
func (m *StubModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	if len(m.queued) > 0 {
		next := m.queued[0]
		m.queued = m.queued[1:]
		return next, nil
	}

	var input string
	if len(req.Contents) > 0 {
		input = req.Contents[len(req.Contents)-1].Text()
	}
	text, ok := m.responses[input]
	if !ok {
		text = fmt.Sprintf("stub response to: %s", input)
	}
	return &Response{
		Content:    core.NewTextContent("assistant", text),
		StopReason: "stop",
	}, nil
}

// Info implements Model.
func (m *StubModel) Info() Info { return m.info }
