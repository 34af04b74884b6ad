package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed API call.
type Kind int

const (
	// KindTransport covers dial failures, timeouts and unreadable responses.
	KindTransport Kind = iota + 1
	// KindAuth is a 401/403 from the backend.
	KindAuth
	// KindApplication is an {"error": true, "message": ...} body or any other
	// non-auth 4xx/5xx.
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Error is returned by every Client method that fails.
type Error struct {
	Kind     Kind
	Endpoint string
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s %s (%d): %s", e.Kind, e.Endpoint, e.Status, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Endpoint, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("%s %s (%d)", e.Kind, e.Endpoint, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func kindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

func IsTransport(err error) bool   { return kindOf(err) == KindTransport }
func IsAuth(err error) bool        { return kindOf(err) == KindAuth }
func IsApplication(err error) bool { return kindOf(err) == KindApplication }

// Message returns text suitable for showing to the user. Application errors
// carry the server-supplied message; other kinds get a generic sentence.
func Message(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		if err == nil {
			return ""
		}
		return "Something went wrong. Please try again."
	}
	switch apiErr.Kind {
	case KindApplication:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return http.StatusText(apiErr.Status)
	case KindAuth:
		return "Your session has expired. Please log in again."
	default:
		return "Unable to reach the server. Please try again."
	}
}
