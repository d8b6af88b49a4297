package handler

// RESPONSE HELPERS:
// Every endpoint answers with a JSON object that carries an "ok" flag.
//
//	respond(w, map[string]any{"file": f})  →  {"ok": true, "file": {...}}
//	writeError(w, err)                     →  {"ok": false, "error": "NoSuchFile", "message": "..."}
//
// The "error" field is the stable kind string from apperror, so the frontend
// can branch on it without parsing messages.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/ziphub/internal/apperror"
)

// maxBodyBytes caps request bodies. The largest legitimate body is a file
// description of 1000 runes.
const maxBodyBytes = 64 << 10

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`   // apperror kind, e.g. "UsernameTaken"
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
// Headers must be set before WriteHeader; anything set afterwards is ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// respond writes a 200 with ok=true merged into fields.
func respond(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind string) int {
	switch kind {
	case apperror.ErrInvalidInput.Error(),
		apperror.ErrMissingFields.Error(),
		apperror.ErrEmptyComment.Error(),
		apperror.ErrUsernameTaken.Error(),
		apperror.ErrInvalidCredentials.Error():
		return http.StatusBadRequest
	case apperror.ErrUnauthenticated.Error(),
		apperror.ErrInvalidSession.Error():
		return http.StatusUnauthorized
	case apperror.ErrPendingApproval.Error(),
		apperror.ErrForbidden.Error(),
		apperror.ErrNotApprovedDeveloper.Error():
		return http.StatusForbidden
	case apperror.ErrNoSuchFile.Error(),
		apperror.ErrNoSuchDeveloper.Error():
		return http.StatusNotFound
	case apperror.ErrRateLimited.Error():
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a domain error to its status and sends it.
//
// errors.As walks the chain, so a service error wrapped with
// fmt.Errorf("...: %w", appErr) still yields the AppError's message.
// Anything outside the taxonomy becomes a generic 500; the raw message could
// carry file paths or SQL and is never sent to the client.
func writeError(w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	status := StatusFor(kind)

	var appErr *apperror.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   apperror.KindInternal,
			Message: "An internal error occurred",
		})
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: appErr.Message,
	})
}

// decodeBody reads a JSON object into dst. An empty body decodes as {} so
// that missing fields are reported by the service, not as a parse error.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperror.InvalidInput("body", "request body must be a JSON object")
	}
	return nil
}

// fail writes err, logging it first when it will surface as Internal.
func fail(logger *slog.Logger, w http.ResponseWriter, r *http.Request, op string, err error) {
	if apperror.KindOf(err) == apperror.KindInternal {
		logger.Error(op+" failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, err)
}
