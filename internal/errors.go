package internal

import "errors"

// ErrorCategory groups protocol error codes by how the server treats them.
type ErrorCategory string

const (
	ProtocolError  ErrorCategory = "ProtocolError"
	StateError     ErrorCategory = "StateError"
	CapacityError  ErrorCategory = "CapacityError"
	LifecycleError ErrorCategory = "LifecycleError"
	TransportError ErrorCategory = "TransportError"
)

// Error is a recoverable per-request failure. It is reported to the sender as
// an ERROR frame and never affects other members of the room.
type Error struct {
	Code     string
	Category ErrorCategory
	Message  string
}

func (e *Error) Error() string { return e.Message }

// Is matches on Code so wrapped errors compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrUnknownMessageType = &Error{Code: "UnknownMessageType", Category: ProtocolError, Message: "unknown message type"}
	ErrMalformedPayload   = &Error{Code: "MalformedPayload", Category: ProtocolError, Message: "malformed payload"}

	ErrIllegalAction  = &Error{Code: "IllegalAction", Category: StateError, Message: "illegal action"}
	ErrNotYourTurn    = &Error{Code: "NotYourTurn", Category: StateError, Message: "not your turn"}
	ErrAlreadyJoined  = &Error{Code: "AlreadyJoined", Category: StateError, Message: "player already joined this room"}
	ErrAlreadyBound   = &Error{Code: "AlreadyBound", Category: StateError, Message: "connection already bound to a player"}
	ErrNotJoined      = &Error{Code: "NotJoined", Category: StateError, Message: "join the room first"}
	ErrGameInProgress = &Error{Code: "GameInProgress", Category: StateError, Message: "game already in progress"}
	ErrGameFinished   = &Error{Code: "GameFinished", Category: StateError, Message: "game already finished"}

	ErrRoomFull = &Error{Code: "RoomFull", Category: CapacityError, Message: "room is full"}

	ErrRoomClosed = &Error{Code: "RoomClosed", Category: LifecycleError, Message: "room no longer exists, join again"}

	ErrConnectionClosed = &Error{Code: "ConnectionClosed", Category: TransportError, Message: "connection closed"}
)

// ErrorDataFrom builds the ERROR frame payload for err. Anything outside the
// taxonomy is reported as InternalError without leaking its text.
func ErrorDataFrom(err error) ErrorData {
	var e *Error
	if errors.As(err, &e) {
		return ErrorData{Code: e.Code, Message: err.Error()}
	}
	return ErrorData{Code: "InternalError", Message: "internal error"}
}
