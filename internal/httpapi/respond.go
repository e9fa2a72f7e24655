package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/p-n-ai/pai-assess/internal/assessment"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	// maxBodyBytes bounds JSON bodies, which may carry base64 PDFs.
	maxBodyBytes = 20 << 20
)

func identityFrom(r *http.Request) (assessment.Identity, error) {
	userID := strings.TrimSpace(r.Header.Get(headerUserID))
	if userID == "" {
		return assessment.Identity{}, fmt.Errorf("missing %s: %w", headerUserID, assessment.ErrUnauthorized)
	}
	role, err := assessment.ParseRole(strings.TrimSpace(r.Header.Get(headerUserRole)))
	if err != nil {
		return assessment.Identity{}, err
	}
	return assessment.Identity{UserID: userID, Role: role}, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %v: %w", err, assessment.ErrInvalidInput)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": message},
	})
}

// statusFor maps domain errors to HTTP statuses. Unauthorized is checked
// first so a non-owner cannot probe which ids exist.
func statusFor(err error) int {
	switch {
	case errors.Is(err, assessment.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, assessment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assessment.ErrAnswerCountMismatch),
		errors.Is(err, assessment.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, assessment.ErrAlreadySubmitted):
		return http.StatusConflict
	case errors.Is(err, assessment.ErrMaterialUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, assessment.ErrAssembly),
		errors.Is(err, assessment.ErrGenerationFormat):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail logs server-side failures and writes the mapped error. Internal
// details are not echoed to the client.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	if status == http.StatusForbidden {
		msg = "forbidden"
	}
	writeError(w, status, msg)
}
