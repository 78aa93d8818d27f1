// Package a2a implements the agent-to-agent task protocol: discovery of
// remote agents via their self-describing cards, JSON-RPC message submission,
// and the dispatcher that preserves per-(session, target) continuation ids so
// a remote agent can resume its own context across asynchronous exchanges.
//
//nolint:tagliatelle // the wire protocol mandates camelCase field names
package a2a

import "strings"

// TaskState is the lifecycle state reported by a remote agent for a task.
type TaskState string

const (
	// TaskStateSubmitted means the task was accepted but work has not started.
	TaskStateSubmitted TaskState = "submitted"
	// TaskStateWorking means the remote agent is actively processing.
	TaskStateWorking TaskState = "working"
	// TaskStateInputRequired means the remote agent is waiting on the caller.
	TaskStateInputRequired TaskState = "input-required"
	// TaskStateCompleted is the successful terminal state.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed is the unsuccessful terminal state.
	TaskStateFailed TaskState = "failed"
	// TaskStateCanceled marks a task stopped on request.
	TaskStateCanceled TaskState = "canceled"
)

// Terminal reports whether the state ends the remote task's lifecycle.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	default:
		return false
	}
}

// MessagePart is one content segment of a task message. Only text parts are
// produced by this runtime; unknown types are preserved for round-tripping.
type MessagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Message is a single message submitted to (or returned by) a remote agent.
// TaskID and ContextID are set only on continuation sends; their absence
// tells the server to open a fresh task.
type Message struct {
	Role      string        `json:"role"`
	Parts     []MessagePart `json:"parts"`
	MessageID string        `json:"messageId"`
	TaskID    string        `json:"taskId,omitempty"`
	ContextID string        `json:"contextId,omitempty"`
}

// NewTextMessage builds a user-role message with a single text part.
func NewTextMessage(id, text string) Message {
	return Message{
		Role:      "user",
		Parts:     []MessagePart{{Type: "text", Text: text}},
		MessageID: id,
	}
}

// TaskStatus is the point-in-time status snapshot of a remote task.
type TaskStatus struct {
	State   TaskState `json:"state"`
	Message *Message  `json:"message,omitempty"`
}

// Artifact is an output attached to a task by the remote agent.
type Artifact struct {
	Name     string         `json:"name,omitempty"`
	Parts    []MessagePart  `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Task is the remote agent's view of one delegated unit of work.
type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"contextId,omitempty"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// ResultText flattens the task's artifact text parts plus any status message
// into one string for consumption as a tool result.
func (t *Task) ResultText() string {
	var sb strings.Builder
	for _, a := range t.Artifacts {
		for _, p := range a.Parts {
			if p.Type == "text" && p.Text != "" {
				if sb.Len() > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(p.Text)
			}
		}
	}
	if t.Status.Message != nil {
		for _, p := range t.Status.Message.Parts {
			if p.Type == "text" && p.Text != "" {
				if sb.Len() > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(p.Text)
			}
		}
	}
	return sb.String()
}

// Skill describes one advertised capability of a remote agent.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// AgentCard is the self-describing manifest a remote agent publishes at its
// well-known discovery path.
type AgentCard struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	URL          string         `json:"url,omitempty"`
	Version      string         `json:"version,omitempty"`
	Capabilities map[string]any `json:"capabilities,omitempty"`
	Skills       []Skill        `json:"skills,omitempty"`
}
