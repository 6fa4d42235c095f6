package session

import (
	"errors"
	"fmt"
)

// Sentinel errors raised by the controllers. Media errors live in the audio
// package and relay errors in the relay package; together they form the
// full taxonomy surfaced to the UI.
var (
	// ErrRoomNotFound: the room has no record, or a record without an
	// offer.
	ErrRoomNotFound = errors.New("room not found")

	// ErrTransportFailed: the transport connection reached a failure
	// state.
	ErrTransportFailed = errors.New("transport connection failed")
)

// SessionError carries the failing operation and room alongside the cause.
type SessionError struct {
	Op      string
	Room    string
	Err     error
	Details string
}

func (e *SessionError) Error() string {
	if e.Room != "" {
		return fmt.Sprintf("%s (room %s): %v", e.Op, e.Room, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *SessionError {
	return &SessionError{Op: op, Err: err}
}

func NewRoomError(op, room string, err error) *SessionError {
	return &SessionError{Op: op, Room: room, Err: err}
}

func WrapError(op string, err error, details string) *SessionError {
	return &SessionError{Op: op, Err: err, Details: details}
}
