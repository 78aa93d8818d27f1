// Package session provides durable, keyed storage for conversation state that
// outlives a single exchange — the multi-day SMS reply pattern. Records are
// addressable by id and by an optional phone-number secondary key, expire
// lazily after a configured TTL, and hide their storage medium (memory, flat
// files, SQLite) behind one narrow Store interface.
package session

import (
	"errors"
	"time"
)

// DefaultTTL is the session time-to-live applied when a store is constructed
// without an explicit one. Long enough to span a patient replying the next day.
const DefaultTTL = 24 * time.Hour

// State enumerates the conversation states a session moves through.
type State string

const (
	// StateAwaitingResponse marks a session waiting for the user's reply.
	StateAwaitingResponse State = "awaiting_response"
	// StateResponseReceived marks a reply that matched no recognized action.
	StateResponseReceived State = "response_received"
	// StateSlotConfirmed marks a reply that selected one of the offered options.
	StateSlotConfirmed State = "slot_confirmed"
	// StateSlotsDeclined marks a reply rejecting every offered option.
	StateSlotsDeclined State = "slots_declined"
)

// ErrNotFound is returned when a session is absent or has expired. Callers
// treat it as "start a new conversation", not as a failure.
var ErrNotFound = errors.New("session not found")

// Session is one durable unit of conversation state.
type Session struct {
	ID        string         `json:"id"`
	Phone     string         `json:"phone,omitempty"` // secondary lookup key
	Payload   map[string]any `json:"payload,omitempty"`
	State     State          `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// New creates a session in the awaiting-response state. Timestamps and expiry
// are stamped by the store on first Save.
func New(id, phone string) *Session {
	return &Session{
		ID:      id,
		Phone:   phone,
		Payload: map[string]any{},
		State:   StateAwaitingResponse,
	}
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// MergePayload merges the delta into the session payload.
func (s *Session) MergePayload(delta map[string]any) {
	if s.Payload == nil {
		s.Payload = map[string]any{}
	}
	for k, v := range delta {
		s.Payload[k] = v
	}
}

// Clone returns a deep-enough copy safe for independent mutation (payload map
// copied one level down, matching how payloads are written).
func (s *Session) Clone() *Session {
	clone := *s
	clone.Payload = make(map[string]any, len(s.Payload))
	for k, v := range s.Payload {
		clone.Payload[k] = v
	}
	return &clone
}

// Store is the narrow persistence interface for sessions. Implementations
// apply lazy expiry on every read: a record past its TTL is removed as a side
// effect and reported as ErrNotFound. No background sweep exists.
type Store interface {
	// Save upserts by id, stamps UpdatedAt, and unconditionally rewrites the
	// phone index to this session when a phone is set. Older sessions under
	// the same phone stay reachable only by direct id.
	Save(s *Session) error

	// Load returns the session or ErrNotFound if absent or expired.
	Load(id string) (*Session, error)

	// LoadByPhone resolves the phone index and delegates to Load.
	LoadByPhone(phone string) (*Session, error)

	// UpdateState sets the state of an existing, unexpired session.
	UpdateState(id string, state State) error

	// Delete removes the session. The phone index entry is removed only if it
	// still points at this id, protecting a newer session's mapping.
	Delete(id string) error
}
