// Package core defines the shared content model exchanged between the loop
// engine, the language-model backends and the capability registry: role-based
// Content composed of typed Parts, function call/response pairs and the
// tool-call records attached to a finished exchange.
package core
