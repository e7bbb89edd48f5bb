// ABOUTME: Shared HTTP helpers: JSON encoding, strict decoding, path/query parsing
// ABOUTME: Maps store and validation errors onto status codes and records mutations

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/tally/internal/auth"
	"github.com/2389/tally/internal/events"
	"github.com/2389/tally/internal/invoicing"
	"github.com/2389/tally/internal/store"
)

// maxBodyBytes bounds JSON request bodies; logos travel inline as base64.
const maxBodyBytes = 8 << 20

// errBadRequest marks malformed input; its message is shown to the caller.
type errBadRequest struct{ msg string }

func (e *errBadRequest) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &errBadRequest{msg: fmt.Sprintf(format, args...)}
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes exactly one JSON value from the body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest("request body too large")
		}
		return badRequest("invalid JSON body: %v", err)
	}
	if dec.More() {
		return badRequest("invalid JSON body: unexpected data after object")
	}
	return nil
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id %q", raw)
	}
	return id, nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("%s must be a non-negative integer", name)
	}
	return v, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	v, err := queryInt(r, name)
	return int64(v), err
}

// checkBodyID rejects a body ID that disagrees with the path ID.
func checkBodyID(field string, bodyID, pathID int64) error {
	if bodyID != 0 && bodyID != pathID {
		return badRequest("%s %d does not match path id %d", field, bodyID, pathID)
	}
	return nil
}

// handleError maps err to a status code and writes it. Unknown errors are
// logged and reported as 500 without detail.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var bad *errBadRequest
	var verr *invoicing.ValidationError
	switch {
	case errors.As(err, &bad):
		sendJSONError(w, http.StatusBadRequest, bad.msg)
	case errors.As(err, &verr):
		sendJSONError(w, http.StatusUnprocessableEntity, verr.Error())
	case errors.Is(err, store.ErrClientCompanyMismatch):
		sendJSONError(w, http.StatusUnprocessableEntity, store.ErrClientCompanyMismatch.Error())
	case errors.Is(err, store.ErrNotFound):
		sendJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrMissingID):
		sendJSONError(w, http.StatusBadRequest, "id is required")
	case errors.Is(err, store.ErrDuplicate):
		sendJSONError(w, http.StatusConflict, "already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		sendJSONError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// recordChange appends an audit entry and notifies subscribers of the company.
// Audit failures are logged; the mutation has already been committed.
func (s *Server) recordChange(r *http.Request, action store.AuditAction, targetType string, targetID, companyID int64, kind, change string, detail map[string]any) {
	entry := &store.AuditEntry{
		Actor:      auth.Actor(r.Context()),
		Action:     action,
		TargetType: targetType,
		TargetID:   strconv.FormatInt(targetID, 10),
		Detail:     detail,
	}
	if err := s.store.AppendAuditLog(r.Context(), entry); err != nil {
		s.logger.Error("failed to append audit log", "action", action, "target_id", targetID, "error", err)
	}

	if kind != "" && companyID > 0 {
		s.events.Publish(events.ChangeEvent{
			CompanyID: companyID,
			Kind:      kind,
			Action:    change,
			TargetID:  targetID,
		})
	}
}

// requestLang returns the ?lang= value resolved against settings and config.
func (s *Server) requestLang(r *http.Request) string {
	return s.renderer.ResolveLanguage(r.Context(), r.URL.Query().Get("lang"))
}
