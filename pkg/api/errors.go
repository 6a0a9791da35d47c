package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the backend answers 401.
var ErrUnauthorized = errors.New("authentication failed: check the API credential")

// TransportError describes a request that never produced a usable response:
// the network failed or the server answered with a non-2xx status.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int // 0 when no response was received
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if errors.Is(e.Err, ErrUnauthorized) {
		return e.Err.Error()
	}
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("request failed with status code %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is (or wraps) ErrUnauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
