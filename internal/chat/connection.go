package chat

import "time"

// ConnID identifies one live connection. It is assigned by the transport and
// unique for the lifetime of the process.
type ConnID string

// State is the lifecycle state of a connection.
type State int

const (
	StateConnected State = iota
	StateAuthenticated
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection is the engine's record of a live connection. It carries no
// identity: the binding lives in the PresenceRegistry.
type Connection struct {
	ID          ConnID
	State       State
	ConnectedAt time.Time
}
