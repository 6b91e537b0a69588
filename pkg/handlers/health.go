package handlers

import (
	"net/http"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/config"
	"github.com/ekaya-inc/ekaya-admingen/pkg/services/workqueue"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string                      `json:"status"`
	Connections *datasource.ConnectionStats `json:"connections,omitempty"`
	DeployQueue *workqueue.Progress         `json:"deploy_queue,omitempty"`
}

// ConnectionStatser reports datasource pool statistics.
type ConnectionStatser interface {
	Stats() datasource.ConnectionStats
}

// QueueProgresser reports deploy queue progress.
type QueueProgresser interface {
	Progress() workqueue.Progress
}

// HealthHandler handles health check, ping and metrics endpoints.
type HealthHandler struct {
	cfg         *config.Config
	connections ConnectionStatser
	queue       QueueProgresser
	logger      *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. connections and queue may be nil.
func NewHealthHandler(cfg *config.Config, connections ConnectionStatser, queue QueueProgresser, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, connections: connections, queue: queue, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}
	if h.connections != nil {
		stats := h.connections.Stats()
		response.Connections = &stats
	}
	if h.queue != nil {
		progress := h.queue.Progress()
		response.DeployQueue = &progress
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-admingen",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
