package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
)

func TestErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	require.NoError(t, ErrorResponse(rec, http.StatusNotFound, "not_found", "resource not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["error"])
	assert.Equal(t, "resource not found", body["message"])
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	require.NoError(t, WriteJSON(rec, http.StatusAccepted, map[string]int{"n": 1}))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"n":1}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("sql/menu: %w", apperrors.ErrTemplateNotFound), http.StatusNotFound, "template_not_found"},
		{fmt.Errorf("dial: %w", apperrors.ErrConnection), http.StatusBadGateway, "connection_failed"},
		{apperrors.ErrUnsupportedDialect, http.StatusBadRequest, "unsupported_dialect"},
		{apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{apperrors.ErrConflict, http.StatusConflict, "conflict"},
		{apperrors.ErrBuiltinTemplate, http.StatusConflict, "builtin_template"},
		{apperrors.ErrTaskTerminal, http.StatusConflict, "task_terminal"},
		{fmt.Errorf("render: %w: %w", apperrors.ErrTemplateRender, errors.New("bad")), http.StatusInternalServerError, "template_render_failed"},
		{apperrors.ErrFilesystem, http.StatusInternalServerError, "filesystem_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestServiceError_HidesUnclassifiedErrors(t *testing.T) {
	rec := httptest.NewRecorder()

	ServiceError(rec, errors.New("pq: relation gen_configs does not exist"), "Failed to load config", zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Failed to load config", body["message"])
}

func TestServiceError_ReportsClientErrors(t *testing.T) {
	rec := httptest.NewRecorder()

	ServiceError(rec, fmt.Errorf("no target group selected: %w", apperrors.ErrInvalidInput), "Failed to deploy", zap.NewNop())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_input", body["error"])
	assert.Contains(t, body["message"], "no target group selected")
}
