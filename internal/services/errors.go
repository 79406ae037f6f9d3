package services

import (
	"errors"
	"fmt"
)

// ErrAuthenticationFailed covers login attempts the backend declined.
var ErrAuthenticationFailed = errors.New("authentication failed")

// ErrGenerationFailed covers invitation creation the backend declined.
var ErrGenerationFailed = errors.New("invitation generation failed")

// ErrUpdateFailed covers permission status flips the backend declined.
var ErrUpdateFailed = errors.New("permission update failed")

// ErrNoSession is returned when an operation that needs an authenticated
// session is invoked without one. It is resolved client-side, before any
// network call.
var ErrNoSession = errors.New("no authenticated session")

// ValidationError reports a field that failed client-side checks. It is
// raised before the request is attempted, so an invalid submission never
// costs a round trip.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}
