// Package httputil centralizes JSON response writing so every handler uses
// the same envelopes and the same domain-error translation.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "trailmark/pkg/domain-errors"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeValidation:      http.StatusBadRequest,
	dErrors.CodeBadRequest:      http.StatusBadRequest,
	dErrors.CodeUnauthenticated: http.StatusUnauthorized,
	dErrors.CodeForbidden:       http.StatusForbidden,
	dErrors.CodeNotFound:        http.StatusNotFound,
	dErrors.CodeConflict:        http.StatusConflict,
	dErrors.CodeUpstream:        http.StatusBadGateway,
	dErrors.CodeInternal:        http.StatusInternalServerError,
}

// ToHTTPStatus maps a domain error code to an HTTP status. Unknown codes map
// to 500 so an unmapped error can never leak as a success.
func ToHTTPStatus(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error            string              `json:"error"`
	ErrorDescription string              `json:"error_description,omitempty"`
	Fields           map[string][]string `json:"fields,omitempty"`
}

// WriteError translates a domain error into the JSON error envelope. 5xx-class
// responses omit the description; callers are expected to have logged the
// cause with full detail before returning it.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := ToHTTPStatus(code)

	body := errorBody{Error: string(code)}
	if status < http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.ErrorDescription = de.Message
			body.Fields = de.Fields
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
