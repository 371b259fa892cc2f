package cloud

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to classify an error returned by this package
// or by the lamp and fleet packages built on top of it.
var (
	ErrCommand    = errors.New("lamp command failed")
	ErrStateFetch = errors.New("lamp state fetch failed")
	ErrDiscovery  = errors.New("lamp discovery failed")
	ErrTransport  = errors.New("cloud transport failure")
)

// StatusError is returned when the cloud answers with a non-success status.
type StatusError struct {
	Kind       error
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: status %d", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%v: status %d: %s", e.Kind, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}

// TransportError is returned when a request never produced an HTTP response:
// timeouts, refused connections, DNS failures.
// It matches both ErrTransport and the kind of the operation that failed.
type TransportError struct {
	Kind   error
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", e.Kind, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Kind, e.Err}
}
