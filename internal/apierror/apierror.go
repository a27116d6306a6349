// Package apierror holds the JSON envelopes of every 4xx/5xx answer.
// Webhook callers (the CRM) only ever see Detail; causes stay in the log.
package apierror

const msgInternal = "Error interno del servidor"

// APIError is the error envelope: {"detail": "..."}.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Internal is the envelope of every unexpected failure.
func Internal() *APIError {
	return &APIError{Detail: msgInternal}
}

// ValidationError adds the failed validation tag of each offending field.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

func Validation(detail string, fields map[string]string) *ValidationError {
	return &ValidationError{Detail: detail, Fields: fields}
}
