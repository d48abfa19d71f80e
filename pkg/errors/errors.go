package chat_errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNetwork              = errors.New("network error")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrServer               = errors.New("server error")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUpload               = errors.New("upload failed")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrNotFound             = errors.New("not found")
)

// RequestError describes a failed remote operation. Kind is one of the
// sentinel errors above so callers can branch with errors.Is.
type RequestError struct {
	Op      string
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Is(target error) bool {
	return target == e.Kind
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func Network(op string, err error) error {
	return &RequestError{Op: op, Kind: ErrNetwork, Err: err}
}

func Unauthorized(op string) error {
	return &RequestError{Op: op, Kind: ErrUnauthorized, Status: 401}
}

func Server(op string, status int, message string) error {
	return &RequestError{Op: op, Kind: ErrServer, Status: status, Message: message}
}

// Validation reports a required field that was missing before any call was made.
func Validation(op, field string) error {
	return &RequestError{Op: op, Kind: ErrInvalidInput, Message: field + " is required"}
}

func Upload(op, message string) error {
	return &RequestError{Op: op, Kind: ErrUpload, Message: message}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}
