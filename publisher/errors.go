package publisher

import "fmt"

// APIError is returned when Instagram rejects a request or answers with
// something the client cannot use.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	ErrorType  string
	Cause      error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("instagram %s", e.Endpoint)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.ErrorType != "" {
		msg += " " + e.ErrorType
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Cause
}
