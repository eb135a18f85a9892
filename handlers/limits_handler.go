package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/upb/worldedit-policy/models"
	"github.com/upb/worldedit-policy/services/limits"
	"github.com/upb/worldedit-policy/utils"
	"go.uber.org/zap"
)

// PolicyStore is the part of policy.Store the handlers use
type PolicyStore interface {
	Current() *models.Configuration
	Version() uint64
	Reload(ctx context.Context) (*models.Configuration, error)
}

// LimitEvaluator answers per-caller limit questions
type LimitEvaluator interface {
	PolygonPointLimit(ctx context.Context, callerID uuid.UUID) (int, error)
	ChangeLimit(ctx context.Context, callerID uuid.UUID) (int, error)
	CheckRadius(ctx context.Context, radius float64) error
	CheckBrushRadius(ctx context.Context, radius float64) error
	CanPlace(ctx context.Context, callerID uuid.UUID, id models.BlockID) (bool, error)
}

// SnapshotResponse is a published configuration with its version
type SnapshotResponse struct {
	Version       uint64                `json:"version"`
	Configuration *models.Configuration `json:"configuration"`
}

// RadiusCheckRequest carries a radius to check against the current caps
type RadiusCheckRequest struct {
	Radius *float64 `json:"radius" validate:"required"`
}

// RadiusCheckResponse is returned when the radius is within limits
type RadiusCheckResponse struct {
	Allowed bool    `json:"allowed"`
	Radius  float64 `json:"radius"`
}

// CallerLimitResponse is an effective cap resolved for one caller
type CallerLimitResponse struct {
	CallerID uuid.UUID `json:"caller_id"`
	Limit    int       `json:"limit"`
}

// BlockPlacementResponse reports whether a caller may place a block
type BlockPlacementResponse struct {
	CallerID uuid.UUID      `json:"caller_id"`
	BlockID  models.BlockID `json:"block_id"`
	Allowed  bool           `json:"allowed"`
}

// ButcherRadiusResponse is the radius a butcher request resolves to
type ButcherRadiusResponse struct {
	Requested int `json:"requested"`
	Radius    int `json:"radius"`
}

// LimitsHandler exposes the policy snapshot and limit checks
type LimitsHandler struct {
	store     PolicyStore
	evaluator LimitEvaluator
	logger    *zap.Logger
}

// NewLimitsHandler creates a new LimitsHandler
func NewLimitsHandler(store PolicyStore, evaluator LimitEvaluator, logger *zap.Logger) *LimitsHandler {
	return &LimitsHandler{
		store:     store,
		evaluator: evaluator,
		logger:    logger,
	}
}

// HandleGetLimits handles GET /api/v1/limits
func (h *LimitsHandler) HandleGetLimits(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, SnapshotResponse{
		Version:       h.store.Version(),
		Configuration: h.store.Current(),
	})
}

// HandleReload handles POST /api/v1/limits/reload
func (h *LimitsHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	cfg, err := h.store.Reload(r.Context())
	if err != nil {
		h.logger.Error("policy reload failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	version := h.store.Version()
	h.logger.Info("policy reloaded",
		zap.String("request_id", requestID),
		zap.Uint64("version", version))

	_ = utils.WriteOK(w, SnapshotResponse{Version: version, Configuration: cfg})
}

// HandleCheckRadius handles POST /api/v1/limits/radius/check
func (h *LimitsHandler) HandleCheckRadius(w http.ResponseWriter, r *http.Request) {
	h.checkRadius(w, r, h.evaluator.CheckRadius)
}

// HandleCheckBrushRadius handles POST /api/v1/limits/brush-radius/check
func (h *LimitsHandler) HandleCheckBrushRadius(w http.ResponseWriter, r *http.Request) {
	h.checkRadius(w, r, h.evaluator.CheckBrushRadius)
}

func (h *LimitsHandler) checkRadius(w http.ResponseWriter, r *http.Request, check func(context.Context, float64) error) {
	var req RadiusCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := check(r.Context(), *req.Radius); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, RadiusCheckResponse{Allowed: true, Radius: *req.Radius})
}

// HandlePolygonPointLimit handles GET /api/v1/limits/polygon-points?caller_id=
func (h *LimitsHandler) HandlePolygonPointLimit(w http.ResponseWriter, r *http.Request) {
	h.callerLimit(w, r, h.evaluator.PolygonPointLimit)
}

// HandleChangeLimit handles GET /api/v1/limits/change-limit?caller_id=
func (h *LimitsHandler) HandleChangeLimit(w http.ResponseWriter, r *http.Request) {
	h.callerLimit(w, r, h.evaluator.ChangeLimit)
}

func (h *LimitsHandler) callerLimit(w http.ResponseWriter, r *http.Request, resolve func(context.Context, uuid.UUID) (int, error)) {
	callerID, err := utils.ParseUUID(r.URL.Query().Get("caller_id"), "caller_id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	limit, err := resolve(r.Context(), callerID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, CallerLimitResponse{CallerID: callerID, Limit: limit})
}

// HandleBlockPlacement handles GET /api/v1/limits/blocks/{blockID}?caller_id=
func (h *LimitsHandler) HandleBlockPlacement(w http.ResponseWriter, r *http.Request) {
	blockID, err := strconv.Atoi(chi.URLParam(r, "blockID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid block id", nil)
		return
	}
	callerID, err := utils.ParseUUID(r.URL.Query().Get("caller_id"), "caller_id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	allowed, err := h.evaluator.CanPlace(r.Context(), callerID, models.BlockID(blockID))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, BlockPlacementResponse{
		CallerID: callerID,
		BlockID:  models.BlockID(blockID),
		Allowed:  allowed,
	})
}

// HandleButcherRadius handles GET /api/v1/limits/butcher-radius?requested=
// An absent requested value selects the configured default.
func (h *LimitsHandler) HandleButcherRadius(w http.ResponseWriter, r *http.Request) {
	requested := -1
	if raw := r.URL.Query().Get("requested"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid requested radius", nil)
			return
		}
		requested = n
	}

	_ = utils.WriteOK(w, ButcherRadiusResponse{
		Requested: requested,
		Radius:    limits.EffectiveButcherRadius(h.store.Current(), requested),
	})
}
