package http

import (
	"errors"
	"fmt"
)

// Kind classifies a failed API call
type Kind int

const (
	// KindNetwork means no response arrived (offline, DNS, timeout)
	KindNetwork Kind = iota + 1
	// KindSessionExpired means a 401 survived the one-shot refresh
	KindSessionExpired
	// KindValidation is any other 4xx; Message is the server's text
	KindValidation
	// KindServer is a 5xx or a response that failed boundary validation
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindSessionExpired:
		return "session_expired"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

const (
	MessageNetworkUnavailable = "network unavailable, check your connection and try again"
	MessageSessionExpired     = "session expired, please sign in again"
	MessageServer             = "something went wrong, please try again later"
)

var (
	// ErrNetworkUnavailable matches every KindNetwork error
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrSessionExpired matches every KindSessionExpired error
	ErrSessionExpired = errors.New("session expired")
)

// Error is the single error shape returned by Client.Do
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind sentinels
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetworkUnavailable:
		return e.Kind == KindNetwork
	case ErrSessionExpired:
		return e.Kind == KindSessionExpired
	}
	return false
}

// KindOf returns the kind of err, or 0 when err is not an *Error
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// Message returns the user facing text for err
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
