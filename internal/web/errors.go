package web

// errors.go provides unified error response handling for the web layer.
//
// The technical error is logged with the request id; the client receives the
// coded message from core.MapError, as JSON for API routes and as an HTML
// alert otherwise.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/boqimport/internal/config"
	"github.com/JonMunkholm/boqimport/internal/core"
	"github.com/JonMunkholm/boqimport/internal/logging"
	"github.com/JonMunkholm/boqimport/internal/web/templates"
)

// requestError is a form or query problem; its message goes to the client as is.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error returned by the pipeline,
// registry or config layers.
func statusFor(err error) int {
	var re *requestError
	switch {
	case errors.As(err, &re),
		errors.Is(err, core.ErrNoFile),
		errors.Is(err, config.ErrUnknownProfile),
		errors.Is(err, config.ErrProfilesDisabled):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnsupportedFormat),
		errors.Is(err, core.ErrEmptyFile),
		core.IsFormatError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyParses):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the user-facing response with status
// statusFor(err).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)
	var re *requestError
	if errors.As(err, &re) || errors.Is(err, config.ErrUnknownProfile) || errors.Is(err, config.ErrProfilesDisabled) {
		userMsg = core.UserMessage{
			Message: err.Error(),
			Action:  "Correct the request and try again",
			Code:    "REQ001",
		}
	}

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= 500 {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, status)
		return
	}
	respondErrorHTML(r.Context(), w, userMsg, status)
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

func respondErrorHTML(ctx context.Context, w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(ctx, w)
}

// wantsJSON reports whether the client should get a JSON error body.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		return false
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
