package entities

import "fmt"

// ErrorDetail provides structured error information for the wire format.
// Message never contains buffer content.
type ErrorDetail struct {
	// Details contains additional error context.
	Details map[string]any `json:"details,omitempty"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Type is the result code name (e.g. "bad parameters").
	Type string `json:"type"`

	// Code is the numeric result code.
	Code uint32 `json:"code"`

	// Origin is the layer that produced the error.
	Origin string `json:"origin,omitempty"`
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s (0x%08x)", e.Type, e.Code)
	if e.Origin != "" {
		msg = fmt.Sprintf("%s origin %s", msg, e.Origin)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	return msg
}

// WithDetails attaches details to the ErrorDetail and returns it.
func (e *ErrorDetail) WithDetails(details map[string]any) *ErrorDetail {
	e.Details = details
	return e
}
