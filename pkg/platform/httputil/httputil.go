// Package httputil maps domain errors onto stable HTTP responses and handles
// request decoding boilerplate.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "ripple/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Reason      string `json:"reason,omitempty"`
	Description string `json:"error_description,omitempty"`
}

// WriteError renders a coded domain error. Internal errors hide their message;
// everything else carries it so callers can debug without log access. Conflict
// responses include the stable reason for branching.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code), Reason: dErrors.ReasonOf(err)}

	status := http.StatusInternalServerError
	switch code {
	case dErrors.CodeValidation:
		status = http.StatusBadRequest
	case dErrors.CodeNotFound:
		status = http.StatusNotFound
	case dErrors.CodeUnauthorized:
		status = http.StatusUnauthorized
	case dErrors.CodeForbidden:
		status = http.StatusForbidden
	case dErrors.CodeConflict:
		status = http.StatusConflict
	}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.Description = de.Message
		}
	}
	WriteJSON(w, status, body)
}

// WriteJSON renders v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck // headers already sent
	}
}

// DecodeJSON parses the request body into T, writing a validation error on
// malformed input.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "request decode failed", "error", err)
		WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed JSON body"))
		return req, false
	}
	return req, true
}
