// Package session owns the wire envelopes exchanged with the game-coordinator
// gateway that resolves unmasked inspect links.
//
// Ownership boundary:
// - login / login.ack handshake messages
// - inspect.request / inspect.answer messages
// - dial timeouts and retry/backoff primitives
//
// Answers carry no request id. Correlation relies on the caller keeping at
// most one request in flight per connection.
package session
