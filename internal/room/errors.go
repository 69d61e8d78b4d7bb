package room

import "fmt"

// User-visible failure messages. Short and typed, independent of the
// underlying technical cause; detail stays in logs and the wrapped error.
const (
	MsgJoinFailed    = "Failed to join meeting"
	MsgRoomNotFound  = "Meeting not found"
	MsgPublishFailed = "Failed to share your camera and microphone"
	MsgScreenFailed  = "Failed to share your screen"
)

// SessionError wraps an operation failure with a user-visible message.
type SessionError struct {
	Op      string
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// UserMessage returns the short presentation-ready failure text.
func (e *SessionError) UserMessage() string {
	return e.Message
}

func newError(op, message string, err error) *SessionError {
	return &SessionError{Op: op, Message: message, Err: err}
}
