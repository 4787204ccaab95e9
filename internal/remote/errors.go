package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBound is returned when looking up or calling a name that has
	// no object bound in the registry.
	ErrNotBound = errors.New("name not bound")
	// ErrUnknownAction is returned for an action the object does not
	// implement.
	ErrUnknownAction = errors.New("unknown action")
)

// Response codes carried in failed responses.
const (
	CodeNotBound      = "not-bound"
	CodeUnknownAction = "unknown-action"
	CodeInvalid       = "invalid-request"
	CodeFailed        = "failed"
)

// RemoteError is a failure reported by the far side of a call.
type RemoteError struct {
	Object  string
	Action  string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error on %s.%s: %s", e.Object, e.Action, e.Message)
}

// Unwrap maps well-known codes back to their sentinel errors.
func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case CodeNotBound:
		return ErrNotBound
	case CodeUnknownAction:
		return ErrUnknownAction
	default:
		return nil
	}
}

func codeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotBound):
		return CodeNotBound
	case errors.Is(err, ErrUnknownAction):
		return CodeUnknownAction
	default:
		return CodeFailed
	}
}
