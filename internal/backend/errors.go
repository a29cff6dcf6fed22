package backend

import "fmt"

// NetworkError is a transport-level failure (DNS, connection refused,
// TLS). It never carries an HTTP status because no response was read.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response. Message is the server-provided
// message when one could be extracted, else the raw response text, else
// a generic "HTTP <status>" string.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}
