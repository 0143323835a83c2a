package refresher

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a refresh (or probe) failed.
type Kind int

const (
	// KindNetwork is a transport failure. Retryable.
	KindNetwork Kind = iota + 1
	// KindServer is a 5xx response. Retryable.
	KindServer
	// KindUnauthorized is a 401: the refresh token is gone. Terminal, logs out.
	KindUnauthorized
	// KindValidation is any other 4xx. Terminal, does not log out.
	KindValidation
	// KindDecode is an access token that cannot be read. Treated as no session.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by Refresh.
type Error struct {
	Kind       Kind
	StatusCode int
	// Attempts is how many requests this refresh cycle sent.
	Attempts int
	// Exhausted is set when a retryable failure hit the attempt bound.
	Exhausted bool
	Err       error
}

func (e *Error) Error() string {
	msg := "refresh failed: " + e.Kind.String()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Exhausted {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	if e.Exhausted {
		return false
	}
	switch e.Kind {
	case KindNetwork, KindServer:
		return true
	case KindUnauthorized, KindValidation, KindDecode:
		return false
	default:
		return false
	}
}

// Terminal is the inverse of Retryable.
func (e *Error) Terminal() bool {
	return !e.Retryable()
}

// EndsSession reports whether the failure must tear the session down.
func (e *Error) EndsSession() bool {
	switch e.Kind {
	case KindUnauthorized:
		return true
	case KindNetwork, KindServer:
		return e.Exhausted
	case KindValidation, KindDecode:
		return false
	default:
		return false
	}
}

// Classify maps a completed request to an error, or nil for 2xx.
// A non-nil transportErr always classifies as KindNetwork.
func Classify(statusCode int, transportErr error) *Error {
	if transportErr != nil {
		return &Error{Kind: KindNetwork, Err: transportErr}
	}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized:
		return &Error{Kind: KindUnauthorized, StatusCode: statusCode}
	case statusCode >= 500:
		return &Error{Kind: KindServer, StatusCode: statusCode}
	default:
		return &Error{Kind: KindValidation, StatusCode: statusCode}
	}
}

// KindOf returns the Kind carried by err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
