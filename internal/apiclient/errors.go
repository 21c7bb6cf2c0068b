package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized is returned when the platform rejected the session token.
// The session has already been ended by the time the caller sees it.
var ErrUnauthorized = errors.New("session expired")

// FieldError is one entry of a validation failure list.
type FieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type,omitempty"`
}

// Field is the dotted location without the leading "body"/"query" segment.
func (f FieldError) Field() string {
	parts := make([]string, 0, len(f.Loc))
	for i, p := range f.Loc {
		s := fmt.Sprint(p)
		if i == 0 && (s == "body" || s == "query" || s == "path") {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ".")
}

// APIError is a non-2xx answer from the platform API. Detail is the
// backend's message, surfaced to the operator verbatim.
type APIError struct {
	Status int          `json:"status"`
	Detail string       `json:"detail"`
	Fields []FieldError `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
}

// Temporary reports whether the failure is on the server side.
func (e *APIError) Temporary() bool {
	return e.Status >= 500
}

// parseError builds an APIError from a response body. detail may be a
// string or a list of field errors; anything else falls back to the status
// text.
func parseError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		var detail string
		var fields []FieldError
		switch {
		case len(envelope.Detail) == 0:
		case json.Unmarshal(envelope.Detail, &detail) == nil:
			apiErr.Detail = detail
		case json.Unmarshal(envelope.Detail, &fields) == nil:
			apiErr.Fields = fields
			msgs := make([]string, 0, len(fields))
			for _, f := range fields {
				if name := f.Field(); name != "" {
					msgs = append(msgs, name+": "+f.Msg)
				} else {
					msgs = append(msgs, f.Msg)
				}
			}
			apiErr.Detail = strings.Join(msgs, "; ")
		}
		if apiErr.Detail == "" {
			apiErr.Detail = envelope.Message
		}
	}

	if apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(status)
	}
	return apiErr
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// countsAgainstBreaker is true for transport failures and 5xx answers.
// Client errors mean the platform is up.
func countsAgainstBreaker(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
