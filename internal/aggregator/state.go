package aggregator

// State is a connection's position in the per-endpoint state machine
// described in spec.md §4.1.
type State int

const (
	StateUnknown State = iota
	StatePending
	StateConnected
	StateSubscribed
	StateClosing
	StateClosed
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "UNKNOWN"
	case StatePending:
		return "PENDING"
	case StateConnected:
		return "CONNECTED"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "INVALID"
	}
}

// Terminal reports whether the state is at or below DISCONNECTED, the
// "terminal for termination test" threshold spec.md §4.1 defines: once every
// endpoint reaches a terminal state, the supervisor loop may either
// re-initiate a reconnect (normal operation) or, during shutdown, let the
// process exit. CLOSING counts as terminal too: an unsubscribe with no ack
// still unblocks shutdown rather than burning the full wait timeout.
func (s State) Terminal() bool {
	return s == StateClosing || s == StateClosed || s == StateDisconnected
}
