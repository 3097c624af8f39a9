// Package gateway implements inspect.GameSession over a TCP (optionally TLS)
// connection to a game-coordinator gateway sidecar.
//
// Ownership boundary:
// - dial, TLS and login handshake with retry/backoff
// - translating inspect.request writes and inspect.answer reads
// - reporting connection loss as inspect.EventDisconnected
package gateway
