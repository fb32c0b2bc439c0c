package mockapi

import "time"

// ErrorResponse is the error document every failure is rendered as.
// Field names match what the SDK parses.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// DecideRequest is an ad opportunity
type DecideRequest struct {
	Placement string            `json:"placement" validate:"required"`
	Context   map[string]string `json:"context,omitempty"`
	Keywords  []string          `json:"keywords,omitempty" validate:"max=20"`
}

// DecideResponse is the chosen ad
type DecideResponse struct {
	AdID         string    `json:"ad_id"`
	Placement    string    `json:"placement"`
	Headline     string    `json:"headline"`
	ClickURL     string    `json:"click_url"`
	ImpressionID string    `json:"impression_id"`
	DecidedAt    time.Time `json:"decided_at"`
}

// EventRequest reports an impression, click or conversion
type EventRequest struct {
	Type         string `json:"type" validate:"required,oneof=impression click conversion"`
	AdID         string `json:"ad_id" validate:"required"`
	ImpressionID string `json:"impression_id,omitempty"`
}

// EventResponse acknowledges an event
type EventResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// Error codes
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternalError   = "internal_error"
	ErrCodeInjectedFailure = "injected_failure"
)

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: requestID,
	}
}
