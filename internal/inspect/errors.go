package inspect

import "errors"

var (
	ErrQueueFull            = errors.New("inspect: queue full")
	ErrSessionNotReady      = errors.New("inspect: game session not ready")
	ErrRequestTimedOut      = errors.New("inspect: request timed out")
	ErrRequestExpired       = errors.New("inspect: request expired in queue")
	ErrSessionConnectFailed = errors.New("inspect: session connect failed")
	ErrClientClosed         = errors.New("inspect: client closed")
	ErrNotUnmasked          = errors.New("inspect: link is not an unmasked reference")
)
