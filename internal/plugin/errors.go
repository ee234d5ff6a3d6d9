package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation reports malformed caller input. No I/O was attempted.
	ErrValidation = errors.New("validation failed")
	// ErrTransport reports a connection failure, DNS error or timeout.
	ErrTransport = errors.New("transport failure")
	// ErrProtocol reports a non-success HTTP status.
	ErrProtocol = errors.New("unexpected response status")
	// ErrParse reports a payload that does not match the expected schema.
	ErrParse = errors.New("malformed payload")
	// ErrNotFound reports a plugin missing from the current snapshot.
	ErrNotFound = errors.New("plugin not found")
)

// ProtocolError carries the status and response body of a failed request.
type ProtocolError struct {
	URL    string
	Status int
	Body   string
}

func (e *ProtocolError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %s returned %d", ErrProtocol, e.URL, e.Status)
	}
	return fmt.Sprintf("%s: %s returned %d: %s", ErrProtocol, e.URL, e.Status, e.Body)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// Validationf returns an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Parsef returns an error wrapping ErrParse.
func Parsef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}
