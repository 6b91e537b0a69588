package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/logging"
)

// ApiResponse wraps successful payloads.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// errorClass is the HTTP rendering of one apperrors sentinel.
type errorClass struct {
	target error
	status int
	code   string
}

// errorClasses is checked in order; the first sentinel found in the chain wins.
var errorClasses = []errorClass{
	{apperrors.ErrTemplateNotFound, http.StatusNotFound, "template_not_found"},
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperrors.ErrConnection, http.StatusBadGateway, "connection_failed"},
	{apperrors.ErrUnsupportedDialect, http.StatusBadRequest, "unsupported_dialect"},
	{apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{apperrors.ErrBuiltinTemplate, http.StatusConflict, "builtin_template"},
	{apperrors.ErrTaskTerminal, http.StatusConflict, "task_terminal"},
	{apperrors.ErrConflict, http.StatusConflict, "conflict"},
	{apperrors.ErrTemplateRender, http.StatusInternalServerError, "template_render_failed"},
	{apperrors.ErrFilesystem, http.StatusInternalServerError, "filesystem_error"},
}

// StatusFor maps an error to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// ServiceError logs err and writes the matching error response. Unclassified
// errors are reported as fallback so internals do not leak to clients.
func ServiceError(w http.ResponseWriter, err error, fallback string, logger *zap.Logger, fields ...zap.Field) {
	status, code := StatusFor(err)
	message := logging.SanitizeError(err)
	if code == "internal_error" {
		message = fallback
	}

	if status >= http.StatusInternalServerError {
		logger.Error(fallback, append(fields, zap.String("error", logging.SanitizeError(err)))...)
	} else {
		logger.Debug(fallback, append(fields, zap.String("error", logging.SanitizeError(err)))...)
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
