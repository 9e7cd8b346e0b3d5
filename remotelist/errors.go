package remotelist

import "fmt"

// FetchError reports a completed HTTP exchange with a non-200 status.
type FetchError struct {
	URL    string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("remotelist: fetch %s: status %d", e.URL, e.Status)
}

// TransportError wraps DNS, dial, TLS, timeout and body read failures.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remotelist: transport %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a response body that could not be turned into a Table.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("remotelist: parse line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("remotelist: parse: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
