package socketio

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when using a connection that has been closed.
	ErrClosed = errors.New("socketio: connection closed")

	// ErrPingTimeout is the close reason when the server stops sending pings.
	ErrPingTimeout = errors.New("socketio: ping timeout")

	// ErrServerDisconnect is the close reason when the server ends the
	// namespace or engine session.
	ErrServerDisconnect = errors.New("socketio: server disconnect")
)

// Error describes a failed handshake or a connect_error from the server.
type Error struct {
	// Transport is the transport that was being opened.
	Transport Transport

	// Message is the server or client provided reason.
	Message string

	// HTTPStatus is set when the handshake response carried a status code.
	HTTPStatus int

	rejected bool
}

// Rejected reports whether the server refused the namespace connect with a
// connect_error packet, as opposed to a transport failure.
func (e *Error) Rejected() bool {
	return e.rejected
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("socketio: %s: %s (http_status=%d)", e.Transport, e.Message, e.HTTPStatus)
	}
	return fmt.Sprintf("socketio: %s: %s", e.Transport, e.Message)
}

// AsError attempts to cast an error to *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
