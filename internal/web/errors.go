package web

// errors.go provides unified error response handling for the API.
//
// Every error is logged with full technical detail server-side and returned
// to the client as a sanitized JSON body with a stable machine-readable code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nkhelifi/radiogate/internal/archive"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// userMessage is what the client sees; never the raw error text.
type userMessage struct {
	Message string
	Action  string
	Code    string
}

// mapError converts internal errors into client-safe messages and status codes.
func mapError(err error) (userMessage, int) {
	switch {
	case errors.Is(err, archive.ErrNotFound):
		return userMessage{
			Message: "entry not found",
			Action:  "check the category and index against /api/entries",
			Code:    "NOT_FOUND",
		}, http.StatusNotFound
	default:
		return userMessage{
			Message: "internal error",
			Action:  "retry; contact the operator if the problem persists",
			Code:    "INTERNAL",
		}, http.StatusInternalServerError
	}
}

// respondError logs the technical error with request context and writes the
// mapped client-safe JSON response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg, status := mapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	respondErrorJSON(w, msg, status)
}

// respondBadRequest writes a 400 with the given client-facing message.
// Used for malformed input where the message itself carries no internals.
func respondBadRequest(w http.ResponseWriter, message, action string) {
	respondErrorJSON(w, userMessage{
		Message: message,
		Action:  action,
		Code:    "BAD_REQUEST",
	}, http.StatusBadRequest)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg userMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
