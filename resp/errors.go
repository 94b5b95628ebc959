package resp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// Error types for RESP operations.
// Each type reports whether the connection it happened on can still be used,
// so callers can decide between releasing and discarding the connection.

// ProtocolError is returned when the byte stream does not follow the wire
// format: unknown type tag, malformed length, missing delimiter or a stream
// that ends in the middle of a frame.
//
// The stream is no longer aligned on a frame boundary, so nothing read from
// it afterwards can be trusted.
//
// Connection handling: CLOSE connection immediately
type ProtocolError struct {
	Message string
	Err     error // Underlying error, if any
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return "resp: protocol error: " + e.Message + ": " + e.Err.Error()
	}
	return "resp: protocol error: " + e.Message
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func (e *ProtocolError) ShouldCloseConnection() bool {
	return true
}

// ServerError is a well-formed Error frame returned by the server.
// The reply was fully consumed and the connection is still aligned.
//
// Prefix holds the leading upper-case word of the message (ERR, WRONGTYPE,
// NOAUTH, ...) when there is one.
//
// Connection handling: Connection can be REUSED
type ServerError struct {
	Prefix  string
	Message string
}

// NewServerError builds a ServerError from the payload of an Error frame.
func NewServerError(msg string) *ServerError {
	prefix, _, _ := strings.Cut(msg, " ")
	if prefix == "" || strings.ToUpper(prefix) != prefix {
		prefix = ""
	}
	return &ServerError{Prefix: prefix, Message: msg}
}

func (e *ServerError) Error() string {
	return "resp: server error: " + e.Message
}

func (e *ServerError) ShouldCloseConnection() bool {
	return false
}

// TypeMismatchError is returned by a reply parser that received a frame of a
// shape it cannot interpret. The frame was fully consumed.
//
// Connection handling: Connection can be REUSED
type TypeMismatchError struct {
	Expected []Kind
	Got      Kind
}

func (e *TypeMismatchError) Error() string {
	names := make([]string, len(e.Expected))
	for i, k := range e.Expected {
		names[i] = k.String()
	}
	return fmt.Sprintf("resp: type mismatch: expected %s, got %s", strings.Join(names, " or "), e.Got)
}

func (e *TypeMismatchError) ShouldCloseConnection() bool {
	return false
}

// MapParityError is returned when a flat map reply has an odd number of
// elements, or when one of its elements is not a bulk string.
//
// Connection handling: Connection can be REUSED
type MapParityError struct {
	Message string
}

func (e *MapParityError) Error() string {
	return "resp: invalid map reply: " + e.Message
}

func (e *MapParityError) ShouldCloseConnection() bool {
	return false
}

// UnexpectedStatusError is returned when a status reply carries a different
// status than the command acknowledges with, for example QUEUED instead of OK.
//
// Connection handling: Connection can be REUSED
type UnexpectedStatusError struct {
	Expected string
	Got      string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("resp: unexpected status %q, want %q", e.Got, e.Expected)
}

func (e *UnexpectedStatusError) ShouldCloseConnection() bool {
	return false
}

// DeserializeError wraps a failure of the Deserializer collaborator.
//
// Connection handling: Connection can be REUSED
type DeserializeError struct {
	Err error
}

func (e *DeserializeError) Error() string {
	return "resp: deserialize: " + e.Err.Error()
}

func (e *DeserializeError) Unwrap() error {
	return e.Err
}

func (e *DeserializeError) ShouldCloseConnection() bool {
	return false
}

// ConnectionError wraps transport failures: socket errors, timeouts and
// remote close.
//
// Connection handling: Connection is already broken, CLOSE it
type ConnectionError struct {
	Op  string // read, write, flush, dial
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("resp: connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// Timeout reports whether the failure was caused by a deadline, either a
// socket deadline or a context deadline.
func (e *ConnectionError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) || errors.Is(e.Err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ErrorWithConnectionState is implemented by every error type of this package.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection unusable.
//
// Returns false for nil and for the reply-level errors (ServerError,
// TypeMismatchError, MapParityError, UnexpectedStatusError, DeserializeError).
// Unknown error types return true.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}

// IsRetryable reports whether err is a transport failure. Such an operation
// may succeed on another connection; retrying is left to the caller.
func IsRetryable(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsServerError reports whether err carries a ServerError, optionally with
// one of the given prefixes.
func IsServerError(err error, prefixes ...string) bool {
	var se *ServerError
	if !errors.As(err, &se) {
		return false
	}
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if se.Prefix == p {
			return true
		}
	}
	return false
}
