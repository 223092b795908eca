package web

// errors.go turns errors into responses. The technical error is logged with
// the request ID; the client gets core.MapError's message, action and code,
// as JSON for API routes and as an HTML page otherwise.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/orgenrich/internal/core"
	"github.com/JonMunkholm/orgenrich/internal/logging"
	"github.com/JonMunkholm/orgenrich/internal/reference"
	"github.com/JonMunkholm/orgenrich/internal/table"
	"github.com/JonMunkholm/orgenrich/internal/web/templates"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", userMsg.Code,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		if w.Header().Get("Retry-After") == "" {
			w.Header().Set("Retry-After", "30")
		}
	}

	if wantsJSON(r) {
		writeJSON(w, r, status, ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.ErrorPage(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w)
}

// statusFor picks the HTTP status for an error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, reference.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, table.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// wantsJSON reports whether the client expects a JSON error body.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
