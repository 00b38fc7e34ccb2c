package session

// State is the lifecycle state of a Session's connection.
type State int

const (
	// Idle means no connection has been requested yet, or the session
	// was reset.
	Idle State = iota

	// Connecting means a dial attempt is in flight.
	Connecting

	// Open means the connection is established and frames flow.
	Open

	// Closing means a user-requested close handshake is in progress.
	Closing

	// Closed means the connection ended by user request. A new Connect
	// may be issued.
	Closed

	// Failed means the connection ended with a transport error. With
	// auto-reconnect enabled the session leaves Failed on its own; it
	// is a resting state either way, never terminal.
	Failed
)

// String returns the state as a lowercase word.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
