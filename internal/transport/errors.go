package transport

import (
	"errors"
	"fmt"
)

// ErrTimeout reports that a request exceeded its deadline.
var ErrTimeout = errors.New("request timed out")

// NetworkError is any transport failure that is neither a cancellation nor a
// timeout: DNS failures, refused connections, TLS errors, truncated bodies.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is a *NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
