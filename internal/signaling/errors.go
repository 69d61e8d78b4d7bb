package signaling

import (
	"errors"
	"fmt"
)

var (
	ErrConnectionFailed = errors.New("connection failed")
	ErrNotConnected     = errors.New("not connected")
	ErrDisconnected     = errors.New("disconnected")
	ErrRequestTimeout   = errors.New("request timeout")
	ErrDuplicateRequest = errors.New("duplicate request id")
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
)

// ServerError is an explicit error frame from the signaling server.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server error: %s", e.Message)
}

// ProtocolError reports an inbound payload whose shape does not match the
// wire contract for its message type.
type ProtocolError struct {
	Type string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Type, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
