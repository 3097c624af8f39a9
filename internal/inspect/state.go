package inspect

// SessionState is the lifecycle of the game session as seen by the client.
type SessionState int

const (
	Disconnected SessionState = iota
	Connecting
	Ready
)

func (s SessionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}
