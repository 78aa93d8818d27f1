package core

import "context"

type exchangeIDKey struct{}

// WithExchangeID tags ctx with the session/context id of the running
// exchange. The engine sets it before dispatching tools so capability
// providers can key per-session state without sharing memory with the engine.
func WithExchangeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, exchangeIDKey{}, id)
}

// ExchangeID returns the exchange's session/context id, or "" when the call
// did not originate from an exchange.
func ExchangeID(ctx context.Context) string {
	id, _ := ctx.Value(exchangeIDKey{}).(string)
	return id
}
