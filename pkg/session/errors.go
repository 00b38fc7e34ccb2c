package session

import "errors"

var (
	// ErrInvalidState is returned when a command is issued in a state
	// that does not accept it. The session state is left unchanged and
	// the command is not queued.
	ErrInvalidState = errors.New("session: command not valid in current state")

	// ErrAlreadyActive is returned by Connect while a connection is
	// already being established or open. The in-flight attempt is
	// unaffected.
	ErrAlreadyActive = errors.New("session: connection already active")
)
