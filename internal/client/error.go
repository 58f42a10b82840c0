package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a session failure.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindServerWentMad
	KindServerTimeout
	KindServerShutdown
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServerWentMad:
		return "server_went_mad"
	case KindServerTimeout:
		return "server_timeout"
	case KindServerShutdown:
		return "server_shutdown"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Error is the single failure type returned by a session. Exactly one Kind is
// set. Err holds the transport error for KindNetwork and the cause for the
// other kinds when there is one. Message carries the text of KindOther and the
// reason of an orderly shutdown.
type Error struct {
	Kind    Kind
	Err     error
	Message string
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrNetwork        = &Error{Kind: KindNetwork}
	ErrServerWentMad  = &Error{Kind: KindServerWentMad}
	ErrServerTimeout  = &Error{Kind: KindServerTimeout}
	ErrServerShutdown = &Error{Kind: KindServerShutdown}
	ErrOther          = &Error{Kind: KindOther}
)

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Message == "" && t.Kind == e.Kind
}

// NetworkError wraps a transport failure.
func NetworkError(err error) *Error { return &Error{Kind: KindNetwork, Err: err} }

// OtherError reports a failure that fits no other kind.
func OtherError(msg string) *Error { return &Error{Kind: KindOther, Message: msg} }

func wentMad(format string, args ...any) *Error {
	return &Error{Kind: KindServerWentMad, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of err, or zero when err is nil. Errors that are not
// session errors are reported as KindOther.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindOther
}

// ErrPeerClosed is returned by a Conn when the remote end closed the
// connection in an orderly way.
var ErrPeerClosed = errors.New("connection closed by peer")

// classify maps a transport error to a session error.
func classify(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, ErrPeerClosed):
		return &Error{Kind: KindServerShutdown, Err: err}
	case errors.Is(err, context.DeadlineExceeded), isNetTimeout(err):
		return &Error{Kind: KindServerTimeout, Err: err}
	default:
		return NetworkError(err)
	}
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
