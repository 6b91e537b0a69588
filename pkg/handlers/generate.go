package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
	"github.com/ekaya-inc/ekaya-admingen/pkg/services"
)

// maxDeployBody bounds the deploy options payload.
const maxDeployBody = 64 << 10

// DeployResponse is returned when a deployment is queued.
type DeployResponse struct {
	TaskID string `json:"task_id"`
}

// GenerateHandler serves preview, deployment and download of generated code.
type GenerateHandler struct {
	generator services.Previewer
	deploy    services.DeployService
	download  services.DownloadService
	logger    *zap.Logger
}

// NewGenerateHandler creates a new generate handler.
func NewGenerateHandler(
	generator services.Previewer,
	deploy services.DeployService,
	download services.DownloadService,
	logger *zap.Logger,
) *GenerateHandler {
	return &GenerateHandler{
		generator: generator,
		deploy:    deploy,
		download:  download,
		logger:    logger,
	}
}

// RegisterRoutes registers the generate handler's routes on the given mux.
func (h *GenerateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/configs/{cid}/preview", h.Preview)
	mux.HandleFunc("POST /api/configs/{cid}/deploy", h.Deploy)
	mux.HandleFunc("GET /api/configs/{cid}/download", h.Download)
	mux.HandleFunc("GET /api/deploy-tasks/{tid}", h.TaskStatus)
	mux.HandleFunc("POST /api/deploy-tasks/{tid}/cancel", h.CancelTask)
}

// Preview handles GET /api/configs/{cid}/preview
// Group failures are reported inside the result, so the status is 200 even
// when some groups did not render.
func (h *GenerateHandler) Preview(w http.ResponseWriter, r *http.Request) {
	configID, ok := ParseConfigID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.generator.Preview(r.Context(), configID)
	if err != nil {
		ServiceError(w, err, "Failed to preview config", h.logger, zap.String("config_id", configID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write preview response", zap.Error(err))
	}
}

// Deploy handles POST /api/configs/{cid}/deploy
// An empty body deploys every group without overwriting existing files.
func (h *GenerateHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	configID, ok := ParseConfigID(w, r, h.logger)
	if !ok {
		return
	}

	opts := models.DeployOptions{GenerateFrontend: true, GenerateBackend: true, GenerateSQL: true}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDeployBody)).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	taskID, err := h.deploy.Deploy(r.Context(), configID, opts)
	if err != nil {
		ServiceError(w, err, "Failed to start deployment", h.logger, zap.String("config_id", configID.String()))
		return
	}

	resp := ApiResponse{Success: true, Data: DeployResponse{TaskID: taskID.String()}}
	if err := WriteJSON(w, http.StatusAccepted, resp); err != nil {
		h.logger.Error("Failed to write deploy response", zap.Error(err))
	}
}

// TaskStatus handles GET /api/deploy-tasks/{tid}
func (h *GenerateHandler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID, ok := ParseTaskID(w, r, h.logger)
	if !ok {
		return
	}

	task, err := h.deploy.GetTaskStatus(r.Context(), taskID)
	if err != nil {
		ServiceError(w, err, "Failed to get deployment status", h.logger, zap.String("task_id", taskID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: task}); err != nil {
		h.logger.Error("Failed to write task response", zap.Error(err))
	}
}

// CancelTask handles POST /api/deploy-tasks/{tid}/cancel
func (h *GenerateHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := ParseTaskID(w, r, h.logger)
	if !ok {
		return
	}

	task, err := h.deploy.Cancel(r.Context(), taskID)
	if err != nil {
		ServiceError(w, err, "Failed to cancel deployment", h.logger, zap.String("task_id", taskID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: task}); err != nil {
		h.logger.Error("Failed to write task response", zap.Error(err))
	}
}

// Download handles GET /api/configs/{cid}/download
// Streams a zip of every group. The archive is removed once streamed.
func (h *GenerateHandler) Download(w http.ResponseWriter, r *http.Request) {
	configID, ok := ParseConfigID(w, r, h.logger)
	if !ok {
		return
	}

	archive, err := h.download.BuildArchive(r.Context(), configID)
	if err != nil {
		ServiceError(w, err, "Failed to build download archive", h.logger, zap.String("config_id", configID.String()))
		return
	}
	defer h.download.Cleanup(archive)

	file, err := h.download.Open(archive)
	if err != nil {
		ServiceError(w, err, "Failed to open download archive", h.logger, zap.String("config_id", configID.String()))
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": archive.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file); err != nil {
		h.logger.Warn("Download interrupted",
			zap.String("config_id", configID.String()),
			zap.Error(err))
	}
}
