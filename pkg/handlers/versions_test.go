package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
	"github.com/ekaya-inc/ekaya-admingen/pkg/services"
)

func serveVersions(svc *mockVersionService, method, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	NewVersionsHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestVersionsHandler_List(t *testing.T) {
	configID := uuid.New()
	svc := &mockVersionService{versions: []*models.Version{
		{ConfigID: configID, Version: "v1.0.1"},
		{ConfigID: configID, Version: "v1.0.0"},
	}}

	rec := serveVersions(svc, http.MethodGet, "/api/configs/"+configID.String()+"/versions", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []models.Version `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "v1.0.1", resp.Data[0].Version)
}

func TestVersionsHandler_Create(t *testing.T) {
	svc := &mockVersionService{version: &models.Version{ID: uuid.New(), Version: "v1.0.0"}}

	rec := serveVersions(svc, http.MethodPost, "/api/configs/"+uuid.NewString()+"/versions",
		`{"description":"first cut","created_by":"dana"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "first cut", svc.description)
	assert.Equal(t, "dana", svc.createdBy)
	assert.Contains(t, rec.Body.String(), `"v1.0.0"`)
}

func TestVersionsHandler_Create_EmptyBody(t *testing.T) {
	svc := &mockVersionService{version: &models.Version{Version: "v1.0.0"}}

	rec := serveVersions(svc, http.MethodPost, "/api/configs/"+uuid.NewString()+"/versions", "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, svc.description)
}

func TestVersionsHandler_Create_Errors(t *testing.T) {
	rec := serveVersions(&mockVersionService{}, http.MethodPost, "/api/configs/"+uuid.NewString()+"/versions", "[")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec)["error"])

	svc := &mockVersionService{err: fmt.Errorf("sql: %w", apperrors.ErrTemplateRender)}
	rec = serveVersions(svc, http.MethodPost, "/api/configs/"+uuid.NewString()+"/versions", "{}")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "template_render_failed", decodeError(t, rec)["error"])
}

func TestVersionsHandler_Rollback(t *testing.T) {
	taskID := uuid.New()
	svc := &mockVersionService{rollback: &services.RollbackResult{TaskID: taskID, Version: "v1.0.0"}}

	rec := serveVersions(svc, http.MethodPost, "/api/versions/"+uuid.NewString()+"/rollback", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		Data services.RollbackResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, taskID, resp.Data.TaskID)
	assert.Equal(t, "v1.0.0", resp.Data.Version)
}

func TestVersionsHandler_Rollback_Errors(t *testing.T) {
	rec := serveVersions(&mockVersionService{}, http.MethodPost, "/api/versions/v1.0.0/rollback", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_version_id", decodeError(t, rec)["error"])

	svc := &mockVersionService{err: fmt.Errorf("version: %w", apperrors.ErrNotFound)}
	rec = serveVersions(svc, http.MethodPost, "/api/versions/"+uuid.NewString()+"/rollback", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
