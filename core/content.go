package core

import "github.com/google/uuid"

// Content is one role-attributed message within an exchange. A backend turn
// is Content with role "assistant"; tool results travel back as Content with
// role "tool".
type Content struct {
	Role  string `json:"role"` // "user", "assistant", "system" or "tool"
	Parts []Part `json:"parts"`
}

// Part is a polymorphic segment of Content. The unexported marker keeps the
// set of part types closed.
type Part interface{ isPart() }

// TextPart is a plain text segment.
type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) isPart() {}

// FunctionCall is a backend request to invoke a named tool. ID correlates the
// call with its eventual result.
type FunctionCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // JSON-encoded argument object
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

func (FunctionCallPart) isPart() {}

// FunctionResponse carries the outcome of a function call back to the
// backend. Exactly one of Response or Error is meaningful; a failed tool is
// still a response, never a propagated error.
type FunctionResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

func (FunctionResponsePart) isPart() {}

// NewTextContent builds single-part text Content for the given role.
func NewTextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// Text concatenates the plain-text parts of the content, skipping function
// calls and responses.
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// FunctionCalls returns the function call parts in their original order.
func (c Content) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range c.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns the function response parts in their original order.
func (c Content) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range c.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// NewID generates a unique identifier for messages, sessions and exchanges.
func NewID() string { return uuid.NewString() }
