// Package inspect resolves unmasked inspect links through a single external
// game session.
//
// All callers share one bounded FIFO queue drained by one goroutine. At most
// one request is in flight against the session at any time: the session's
// answer event carries no request id, so the next answer is matched to the
// current queue head. Dispatching a second request before the first resolves
// would make that match ambiguous.
package inspect
