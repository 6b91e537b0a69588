package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/services"
)

// CreateVersionRequest for POST /api/configs/{cid}/versions.
type CreateVersionRequest struct {
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

// VersionsHandler serves version snapshots and rollback.
type VersionsHandler struct {
	versions services.VersionService
	logger   *zap.Logger
}

// NewVersionsHandler creates a new versions handler.
func NewVersionsHandler(versions services.VersionService, logger *zap.Logger) *VersionsHandler {
	return &VersionsHandler{versions: versions, logger: logger}
}

// RegisterRoutes registers the versions handler's routes on the given mux.
func (h *VersionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/configs/{cid}/versions", h.List)
	mux.HandleFunc("POST /api/configs/{cid}/versions", h.Create)
	mux.HandleFunc("POST /api/versions/{vid}/rollback", h.Rollback)
}

// List handles GET /api/configs/{cid}/versions
func (h *VersionsHandler) List(w http.ResponseWriter, r *http.Request) {
	configID, ok := ParseConfigID(w, r, h.logger)
	if !ok {
		return
	}

	list, err := h.versions.List(r.Context(), configID)
	if err != nil {
		ServiceError(w, err, "Failed to list versions", h.logger, zap.String("config_id", configID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: list}); err != nil {
		h.logger.Error("Failed to write versions response", zap.Error(err))
	}
}

// Create handles POST /api/configs/{cid}/versions
func (h *VersionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	configID, ok := ParseConfigID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	v, err := h.versions.CreateSnapshot(r.Context(), configID, req.Description, req.CreatedBy)
	if err != nil {
		ServiceError(w, err, "Failed to create version", h.logger, zap.String("config_id", configID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: v}); err != nil {
		h.logger.Error("Failed to write version response", zap.Error(err))
	}
}

// Rollback handles POST /api/versions/{vid}/rollback
// The restored config is redeployed in the background; poll the returned task.
func (h *VersionsHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	versionID, ok := ParseVersionID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.versions.Rollback(r.Context(), versionID)
	if err != nil {
		ServiceError(w, err, "Failed to roll back version", h.logger, zap.String("version_id", versionID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusAccepted, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write rollback response", zap.Error(err))
	}
}
