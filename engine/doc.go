// Package engine implements the agentic loop that turns one inbound request
// into one exchange with the language-model backend.
//
// The Engine buffers per-session conversation history, sends it to the
// backend together with the tool descriptors from the capability registry,
// dispatches any tool invocations the returned turn requests, folds the
// paired results back into the history as a synthetic turn, and repeats until
// the backend stops requesting tools or the iteration cap is hit. The cap is
// a soft stop: the last turn's content is returned as-is.
//
// Failure semantics are asymmetric. A backend-call failure is fatal to the
// exchange and reported as a failed result; a tool failure is never fatal and
// is surfaced to the backend as ordinary tool-result text.
//
// Hooks provide synchronous lifecycle extension points around exchanges,
// turns and tool dispatches.
package engine
