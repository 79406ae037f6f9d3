package gateway

import "fmt"

// NetworkError means no usable response was received (connection failure,
// timeout, cancellation).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UnauthorizedError is a received response with HTTP status 401. It is the
// only transport status surfaced as an error; whether to force a logout is
// the caller's decision.
type UnauthorizedError struct {
	Path string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Path)
}

// BusinessError is a resolved payload whose status field is not OK. The
// transport succeeded; the backend declined the operation.
type BusinessError struct {
	Status  string
	Message string
}

func (e *BusinessError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error: %s", e.Message)
	}
	return fmt.Sprintf("backend error: status %q", e.Status)
}
