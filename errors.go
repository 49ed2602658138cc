package sp

import (
	"errors"
	"net"
)

// Sentinel errors, grouped per the taxonomy in spec.md §7.
var (
	// ErrWouldBlock: transport not ready, or the command queue is full.
	ErrWouldBlock = errors.New("sp: would block")

	// ErrInvalidData: malformed handshake or length prefix.
	ErrInvalidData = errors.New("sp: invalid data")

	// ErrInvalidInput: malformed option value or address.
	ErrInvalidInput = errors.New("sp: invalid input")

	// ErrTimedOut: send/recv/survey deadline expired.
	ErrTimedOut net.Error = &timeoutError{}

	// ErrProtoOp: operation not supported by this protocol (e.g. recv on Pub).
	ErrProtoOp = errors.New("sp: not supported by protocol")

	// ErrNoRequest: Rep/Respondent send with nothing recorded to reply to.
	ErrNoRequest = errors.New("sp: no request to reply to")

	// ErrClosed: socket, pipe or engine already closed.
	ErrClosed = errors.New("sp: closed")

	// ErrGoAway: identifier space exhausted. Not returned by this
	// package: the Req and Surveyor id counters wrap around silently.
	ErrGoAway = errors.New("sp: identifier space exhausted")

	// ErrBadTransport: unknown address scheme. Not returned by this
	// package: Connect and Bind report an unknown scheme as ErrInvalidInput.
	ErrBadTransport = errors.New("sp: unknown transport scheme")
)

// timeoutError satisfies net.Error, exactly like the teacher's
// timeoutError in session.go — lets Socket slot into code that expects
// net.Conn-shaped deadline errors.
type timeoutError struct{}

func (timeoutError) Error() string   { return "sp: timed out" }
func (timeoutError) Temporary() bool { return true }
func (timeoutError) Timeout() bool   { return true }
