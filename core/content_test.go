package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentText(t *testing.T) {
	c := Content{
		Role: "assistant",
		Parts: []Part{
			TextPart{Text: "Here are your options. "},
			FunctionCallPart{FunctionCall: FunctionCall{Name: "find_slots"}},
			TextPart{Text: "Reply with a number."},
		},
	}

	assert.Equal(t, "Here are your options. Reply with a number.", c.Text())
}

func TestContentFunctionCallsPreserveOrder(t *testing.T) {
	c := Content{
		Role: "assistant",
		Parts: []Part{
			FunctionCallPart{FunctionCall: FunctionCall{ID: "a", Name: "first"}},
			TextPart{Text: "thinking"},
			FunctionCallPart{FunctionCall: FunctionCall{ID: "b", Name: "second"}},
		},
	}

	calls := c.FunctionCalls()
	assert.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].Name)
	assert.Equal(t, "second", calls[1].Name)
}

func TestContentFunctionResponses(t *testing.T) {
	c := Content{
		Role: "tool",
		Parts: []Part{
			FunctionResponsePart{FunctionResponse: FunctionResponse{ID: "a", Name: "first", Response: "ok"}},
			FunctionResponsePart{FunctionResponse: FunctionResponse{ID: "b", Name: "second", Error: "boom"}},
		},
	}

	responses := c.FunctionResponses()
	assert.Len(t, responses, 2)
	assert.Equal(t, "ok", responses[0].Response)
	assert.Equal(t, "boom", responses[1].Error)
}

func TestNewToolCallRecordTruncatesOutput(t *testing.T) {
	long := strings.Repeat("x", 2000)
	rec := NewToolCallRecord("find_slots", `{"specialty":"cardiology"}`, long)

	assert.Len(t, rec.Output, 500)
	assert.Equal(t, "find_slots", rec.Tool)

	short := NewToolCallRecord("noop", "{}", "done")
	assert.Equal(t, "done", short.Output)
}

func TestNewIDUnique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
