package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/worldedit-policy/repositories"
	"github.com/upb/worldedit-policy/services"
	"github.com/upb/worldedit-policy/services/policy"
	"github.com/upb/worldedit-policy/utils"
	"go.uber.org/zap"
)

// PermissionCache is the part of policy.PermissionCache the handlers use
type PermissionCache interface {
	Stats() policy.CacheStats
	InvalidateCaller(callerID uuid.UUID)
}

// PermissionsResponse lists a caller's grants
type PermissionsResponse struct {
	CallerID    uuid.UUID `json:"caller_id"`
	Permissions []string  `json:"permissions"`
}

// PermissionHandler manages permission grants and the lookup cache
type PermissionHandler struct {
	repo   repositories.PermissionRepository
	cache  PermissionCache
	logger *zap.Logger
}

// NewPermissionHandler creates a new PermissionHandler
func NewPermissionHandler(repo repositories.PermissionRepository, cache PermissionCache, logger *zap.Logger) *PermissionHandler {
	return &PermissionHandler{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// HandleCacheStats handles GET /api/v1/permissions/cache
func (h *PermissionHandler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.cache.Stats())
}

// HandleListPermissions handles GET /api/v1/permissions/{callerID}
func (h *PermissionHandler) HandleListPermissions(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	perms, err := h.repo.ListByCaller(r.Context(), callerID)
	if err != nil {
		HandleServiceError(w, services.WrapExternal("failed to list permissions", err), h.logger)
		return
	}

	_ = utils.WriteOK(w, PermissionsResponse{CallerID: callerID, Permissions: perms})
}

// HandleGrant handles PUT /api/v1/permissions/{callerID}/{permission}
func (h *PermissionHandler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "granted", h.repo.Grant)
}

// HandleRevoke handles DELETE /api/v1/permissions/{callerID}/{permission}
func (h *PermissionHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "revoked", h.repo.Revoke)
}

func (h *PermissionHandler) change(w http.ResponseWriter, r *http.Request, verb string, apply func(context.Context, uuid.UUID, string) error) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	permission := strings.TrimSpace(chi.URLParam(r, "permission"))
	if permission == "" {
		_ = utils.WriteBadRequest(w, "permission is required", nil)
		return
	}

	if err := apply(r.Context(), callerID, permission); err != nil {
		HandleServiceError(w, services.WrapExternal("failed to update permission", err), h.logger)
		return
	}
	h.cache.InvalidateCaller(callerID)

	h.logger.Info("permission "+verb,
		zap.String("caller_id", callerID.String()),
		zap.String("permission", permission))

	w.WriteHeader(http.StatusNoContent)
}

func (h *PermissionHandler) callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	callerID, err := utils.ParseUUID(chi.URLParam(r, "callerID"), "caller_id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return uuid.Nil, false
	}
	return callerID, true
}
