package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the SDK. These can be used with errors.Is()
// to check for specific error conditions.
//
// Example:
//
//	_, err := client.Decide(ctx, opportunity)
//	switch {
//	case errors.Is(err, sdk.ErrTimeout):
//	    // No response within the configured timeout
//	case errors.Is(err, sdk.ErrNetwork):
//	    // Could not reach the API
//	case errors.Is(err, sdk.ErrAPI):
//	    // The API answered with a failure status
//	}
var (
	// ErrInvalidConfig is returned when the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClientClosed is returned for calls made after Close
	ErrClientClosed = errors.New("client is closed")

	// ErrUnsupportedMethod is returned for methods other than GET and POST
	ErrUnsupportedMethod = errors.New("unsupported method")

	// ErrAPI matches every error of kind KindAPI
	ErrAPI = errors.New("api error")

	// ErrNetwork matches every error of kind KindNetwork
	ErrNetwork = errors.New("network error")

	// ErrTimeout matches every error of kind KindTimeout
	ErrTimeout = errors.New("request timeout")
)

// Fallback values used when a failure response carries no parsable error body.
const (
	UnknownErrorCode    = "unknown_error"
	UnknownErrorMessage = "Failed to parse error response"
	UnknownRequestID    = "unknown"

	networkErrorMessage = "Network request failed"
	decodeErrorMessage  = "Failed to decode response"
	timeoutErrorMessage = "Request timed out"
)

// Kind is the closed set of terminal failure classes a request can produce.
//
// Every transport failure is exactly one of these kinds, so callers can
// switch on it exhaustively:
//
//	var sdkErr *sdk.Error
//	if errors.As(err, &sdkErr) {
//	    switch sdkErr.Kind {
//	    case sdk.KindAPI:
//	        log.Printf("api said %d: %s", sdkErr.StatusCode, sdkErr.Body.Message)
//	    case sdk.KindNetwork:
//	        log.Printf("ad service unreachable, try later")
//	    case sdk.KindTimeout:
//	        log.Printf("ad service too slow, try later")
//	    }
//	}
type Kind int

const (
	// KindAPI means the API was reached and replied with a non-success status
	KindAPI Kind = iota + 1
	// KindNetwork means no response was obtained (DNS, refused, reset, bad payload)
	KindNetwork
	// KindTimeout means no response arrived within the deadline
	KindTimeout
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	default:
		return "invalid"
	}
}

// ErrorBody is the structured error document returned by the API on failure.
type ErrorBody struct {
	// Error is the machine readable error code, e.g. "invalid_request"
	Error string `json:"error"`
	// Message is a human readable description
	Message string `json:"message"`
	// RequestID identifies the failed request on the server side
	RequestID string `json:"request_id"`
}

// unknownErrorBody returns the body substituted for unparsable failure responses
func unknownErrorBody() ErrorBody {
	return ErrorBody{
		Error:     UnknownErrorCode,
		Message:   UnknownErrorMessage,
		RequestID: UnknownRequestID,
	}
}

// Error is the single error type produced by the transport core.
// Kind selects which of the remaining fields are meaningful:
//   - KindAPI: StatusCode and Body are set
//   - KindNetwork, KindTimeout: Message is set and Unwrap returns the cause
//
// Example:
//
//	var sdkErr *sdk.Error
//	if errors.As(err, &sdkErr) && sdkErr.Kind == sdk.KindAPI {
//	    fmt.Println(sdkErr.StatusCode, sdkErr.Body.Error, sdkErr.Body.RequestID)
//	}
type Error struct {
	// Kind categorizes the failure
	Kind Kind
	// StatusCode is the HTTP status of an API error, 0 otherwise
	StatusCode int
	// Body is the (possibly synthetic) error document of an API error
	Body ErrorBody
	// Message describes network and timeout errors
	Message string
	// Method and URL identify the failed request
	Method string
	URL    string
	// Attempt is the zero-indexed attempt that produced this error
	Attempt int

	cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch e.Kind {
	case KindAPI:
		return fmt.Sprintf("api error (status %d): %s: %s (request_id: %s)",
			e.StatusCode, e.Body.Error, e.Body.Message, e.Body.RequestID)
	default:
		if e.cause != nil {
			return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.cause)
		}
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Is implements errors.Is against the kind sentinels
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindAPI:
		return target == ErrAPI
	case KindNetwork:
		return target == ErrNetwork
	case KindTimeout:
		return target == ErrTimeout
	}
	return false
}

// IsRetryable reports whether the transport core would retry this error
// given remaining budget.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case KindTimeout, KindNetwork:
		return true
	case KindAPI:
		return IsRetryableStatus(e.StatusCode)
	default:
		return false
	}
}

// newAPIError creates an API error
func newAPIError(statusCode int, body ErrorBody) *Error {
	return &Error{
		Kind:       KindAPI,
		StatusCode: statusCode,
		Body:       body,
	}
}

// newNetworkError wraps a transport failure
func newNetworkError(message string, cause error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: message,
		cause:   cause,
	}
}

// newTimeoutError wraps a deadline or cancellation
func newTimeoutError(cause error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: timeoutErrorMessage,
		cause:   cause,
	}
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return sdkErr, true
	}
	return nil, false
}

// IsRetryable checks if an error belongs to a retryable class:
//   - timeout errors
//   - network errors
//   - API errors with status 408, 429, 500, 502, 503 or 504
//
// Errors outside the taxonomy are never retryable.
func IsRetryable(err error) bool {
	if sdkErr, ok := AsError(err); ok {
		return sdkErr.IsRetryable()
	}
	return false
}

// IsTimeout reports whether err is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNetwork reports whether err is a network error
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsAPIError reports whether err is an API error
func IsAPIError(err error) bool {
	return errors.Is(err, ErrAPI)
}

// StatusCode returns the HTTP status of an API error, or 0.
func StatusCode(err error) int {
	if sdkErr, ok := AsError(err); ok && sdkErr.Kind == KindAPI {
		return sdkErr.StatusCode
	}
	return 0
}

// IsClientError returns true for API errors with a 4xx status
func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= http.StatusBadRequest && code < http.StatusInternalServerError
}

// IsServerError returns true for API errors with a 5xx status
func IsServerError(err error) bool {
	return StatusCode(err) >= http.StatusInternalServerError
}
