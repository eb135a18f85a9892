package limits

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/worldedit-policy/models"
	"github.com/upb/worldedit-policy/services"
	"go.uber.org/zap"
)

// Authorizer answers capability queries for a caller
type Authorizer interface {
	HasPermission(ctx context.Context, callerID uuid.UUID, permission string) (bool, error)
}

// Snapshotter returns the currently published policy snapshot
type Snapshotter interface {
	Current() *models.Configuration
}

// Evaluator resolves caller privileges and applies them to the current
// snapshot. Every method reads the snapshot exactly once.
type Evaluator struct {
	snapshots  Snapshotter
	authorizer Authorizer
	logger     *zap.Logger
}

// NewEvaluator creates a new Evaluator instance
func NewEvaluator(snapshots Snapshotter, authorizer Authorizer, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		snapshots:  snapshots,
		authorizer: authorizer,
		logger:     logger,
	}
}

// PolygonPointLimit returns the effective polygon point limit for a caller
func (e *Evaluator) PolygonPointLimit(ctx context.Context, callerID uuid.UUID) (int, error) {
	cfg := e.snapshots.Current()

	unrestricted, err := e.hasPermission(ctx, callerID, PermissionUnrestricted)
	if err != nil {
		return 0, err
	}
	return EffectivePolygonPointLimit(cfg, unrestricted), nil
}

// ChangeLimit returns the effective block-change limit for a caller
func (e *Evaluator) ChangeLimit(ctx context.Context, callerID uuid.UUID) (int, error) {
	cfg := e.snapshots.Current()

	unrestricted, err := e.hasPermission(ctx, callerID, PermissionUnrestricted)
	if err != nil {
		return 0, err
	}
	return EffectiveChangeLimit(cfg, unrestricted), nil
}

// CheckRadius checks radius against the current snapshot. It never blocks
// and does not consult ctx.
func (e *Evaluator) CheckRadius(_ context.Context, radius float64) error {
	if err := CheckRadius(e.snapshots.Current(), radius); err != nil {
		e.logger.Debug("radius rejected", zap.Float64("radius", radius))
		return err
	}
	return nil
}

// CheckBrushRadius checks a brush radius against the current snapshot. Like
// CheckRadius it never blocks and ignores ctx.
func (e *Evaluator) CheckBrushRadius(_ context.Context, radius float64) error {
	if err := CheckBrushRadius(e.snapshots.Current(), radius); err != nil {
		e.logger.Debug("brush radius rejected", zap.Float64("radius", radius))
		return err
	}
	return nil
}

// CanPlace reports whether the caller may place the given block
func (e *Evaluator) CanPlace(ctx context.Context, callerID uuid.UUID, id models.BlockID) (bool, error) {
	cfg := e.snapshots.Current()
	if !cfg.DisallowedBlocks.Contains(id) {
		return true, nil
	}

	bypass, err := e.hasPermission(ctx, callerID, PermissionAnyBlock)
	if err != nil {
		return false, err
	}
	return IsBlockAllowed(cfg, id, bypass), nil
}

func (e *Evaluator) hasPermission(ctx context.Context, callerID uuid.UUID, permission string) (bool, error) {
	ok, err := e.authorizer.HasPermission(ctx, callerID, permission)
	if err != nil {
		e.logger.Error("permission lookup failed",
			zap.String("caller_id", callerID.String()),
			zap.String("permission", permission),
			zap.Error(err))
		return false, services.WrapExternal(services.ErrAuthorizerUnavailable.Message, err)
	}
	return ok, nil
}
