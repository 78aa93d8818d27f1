package session

import (
	"strconv"
	"strings"
	"time"
)

// ApplyReply folds an inbound user reply into the session. The raw reply and
// a response timestamp land in the payload, then the reply decides the state:
// a number selecting one of the offered options confirms that slot, the
// literal "NONE" declines all of them, anything else is recorded as received
// for the model to interpret. The caller persists the session afterwards.
func ApplyReply(s *Session, reply string) {
	trimmed := strings.TrimSpace(reply)

	s.MergePayload(map[string]any{
		"user_response": trimmed,
		"responded_at":  time.Now().UTC().Format(time.RFC3339),
	})
	s.State = StateResponseReceived

	if strings.EqualFold(trimmed, "NONE") {
		s.State = StateSlotsDeclined
		return
	}

	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return
	}

	options, ok := s.Payload["options"].([]any)
	if !ok {
		// Payloads fresh from JSON decode as []any; in-process callers may
		// still hold typed slices.
		if typed, isTyped := s.Payload["options"].([]string); isTyped {
			options = make([]any, len(typed))
			for i, v := range typed {
				options[i] = v
			}
		}
	}
	if n >= 1 && n <= len(options) {
		s.State = StateSlotConfirmed
		s.MergePayload(map[string]any{"selected_option": options[n-1]})
	}
}
