package api

import (
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates HTTP failures.
type Kind string

const (
	KindAuthentication Kind = "AuthenticationError"
	KindNotFound       Kind = "NotFoundError"
	KindServer         Kind = "ServerError"
	KindHTTP           Kind = "HTTPError"
)

var (
	ErrAuthentication       = errors.New("authentication error")
	ErrNotFound             = errors.New("not found")
	ErrServer               = errors.New("server error")
	ErrHTTP                 = errors.New("http error")
	ErrInvalidOperation     = errors.New("invalid operation")
	ErrMissingPathParameter = errors.New("missing path parameter")
	ErrMissingParameter     = errors.New("missing required parameter")
	ErrNetwork              = errors.New("network error")
	ErrNoBaseURL            = errors.New("no base URL: the API description declares no servers and no domain was given")
)

// APIError is returned for every non-2xx response.
type APIError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Method     string
	URL        string
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindAuthentication:
		return fmt.Sprintf("Authentication failed at %s: %s", e.URL, e.Message)
	case KindNotFound:
		return fmt.Sprintf("Resource not found at %s: %s", e.URL, e.Message)
	case KindServer:
		return fmt.Sprintf("Server error at %s: %s", e.URL, e.Message)
	default:
		return fmt.Sprintf("HTTP error %d at %s: %s", e.StatusCode, e.URL, e.Message)
	}
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Kind == KindAuthentication
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrServer:
		return e.Kind == KindServer
	case ErrHTTP:
		return e.Kind == KindHTTP
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// InvalidOperationError is returned before any I/O when an operation ID is unknown.
type InvalidOperationError struct {
	Operation   string
	Suggestions []string
}

func (e *InvalidOperationError) Error() string {
	msg := "Invalid operation: " + e.Operation
	if len(e.Suggestions) > 0 {
		msg += " (did you mean " + strings.Join(e.Suggestions, ", ") + "?)"
	}
	return msg
}

func (e *InvalidOperationError) Is(target error) bool { return target == ErrInvalidOperation }

// MissingPathParameterError is returned when a path placeholder has no value.
type MissingPathParameterError struct {
	Name     string
	Template string
}

func (e *MissingPathParameterError) Error() string {
	return fmt.Sprintf("missing path parameter %q for %s", e.Name, e.Template)
}

func (e *MissingPathParameterError) Is(target error) bool { return target == ErrMissingPathParameter }

// MissingParameterError is returned when a required query, header or body
// parameter is absent.
type MissingParameterError struct {
	Operation string
	Name      string
	In        string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("operation %s: missing required %s parameter %q", e.Operation, e.In, e.Name)
}

func (e *MissingParameterError) Is(target error) bool { return target == ErrMissingParameter }

// NetworkError wraps transport failures such as refused connections and timeouts.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: request failed: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }
