package inspect

import (
	"context"

	"github.com/danmuck/inspectctl/internal/item"
	"github.com/danmuck/inspectctl/internal/link"
)

type EventKind int

const (
	// EventReady reports a completed login handshake.
	EventReady EventKind = iota + 1
	// EventLoginFailed reports a rejected or broken login; Err is set.
	EventLoginFailed
	// EventAnswer carries the answer to the single in-flight request.
	EventAnswer
	// EventDisconnected reports loss of the session; Err may be set.
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventLoginFailed:
		return "login_failed"
	case EventAnswer:
		return "answer"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is one signal emitted by a GameSession.
type Event struct {
	Kind EventKind
	Item item.Record
	Err  error
}

// GameSession is the live connection to the game network. Implementations
// report asynchronous outcomes on Events, which must stay open for the life
// of the session object.
type GameSession interface {
	// Login starts a login. The handshake outcome arrives as EventReady or
	// EventLoginFailed; an error here means the attempt could not start.
	Login(ctx context.Context) error
	// Logout drops the connection. An EventDisconnected may follow.
	Logout() error
	// Request sends one item lookup. The answer arrives as EventAnswer.
	Request(ctx context.Context, ref link.Reference) error
	Events() <-chan Event
}
