package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "ripple/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "INTERNAL" {
			t.Fatalf("expected error code INTERNAL, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("validation error includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "VALIDATION" {
			t.Fatalf("expected error code VALIDATION, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for validation errors")
		}
	})

	t.Run("conflict carries reason", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Conflict(dErrors.ReasonBlocked, "relationship is blocked"))

		if w.Code != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "CONFLICT" {
			t.Fatalf("expected error code CONFLICT, got %q", body["error"])
		}
		if body["reason"] != dErrors.ReasonBlocked {
			t.Fatalf("expected reason %q, got %q", dErrors.ReasonBlocked, body["reason"])
		}
	})

	t.Run("uncoded error maps to internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("raw failure"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "INTERNAL" {
			t.Fatalf("expected error code INTERNAL, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for uncoded errors")
		}
	})

	t.Run("not found and forbidden map to their statuses", func(t *testing.T) {
		cases := []struct {
			code   dErrors.Code
			status int
		}{
			{dErrors.CodeNotFound, http.StatusNotFound},
			{dErrors.CodeUnauthorized, http.StatusUnauthorized},
			{dErrors.CodeForbidden, http.StatusForbidden},
		}
		for _, tc := range cases {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(tc.code, "nope"))
			if w.Code != tc.status {
				t.Fatalf("code %s: expected status %d, got %d", tc.code, tc.status, w.Code)
			}
		}
	})
}
