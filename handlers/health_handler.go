package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/worldedit-policy/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	PolicyVersion uint64            `json:"policy_version"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// DatabaseChecker is satisfied by postgres.DB
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// VersionSource reports how many snapshots have been published
type VersionSource interface {
	Version() uint64
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db       DatabaseChecker
	policies VersionSource
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil when the
// service runs without a permission database.
func NewHealthHandler(db DatabaseChecker, policies VersionSource, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:       db,
		policies: policies,
		logger:   logger,
	}
}

// HandleHealth handles GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		PolicyVersion: h.policies.Version(),
	})
}

// HandleReadiness handles GET /readyz. The service is ready once a policy
// snapshot has been loaded and the database, if any, answers.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.policies.Version() == 0 {
		checks["policy"] = "not_loaded"
		allHealthy = false
	} else {
		checks["policy"] = "loaded"
	}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			checks["database"] = "unhealthy"
			allHealthy = false
		} else {
			checks["database"] = "healthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		PolicyVersion: h.policies.Version(),
		Checks:        checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
