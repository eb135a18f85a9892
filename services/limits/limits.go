// Package limits turns a policy snapshot and a caller's privileges into
// effective limits and pass/reject decisions.
//
// The functions in this file are pure: they read only the snapshot passed in
// and never block, so callers can run them before allocating any work that is
// proportional to the requested size.
//
// Each cap keeps its own unbounded threshold. The change and polygon caps are
// unbounded when negative; the radius and brush caps are only enforced when
// strictly positive, so 0 also means unbounded for them.
package limits

import (
	"github.com/upb/worldedit-policy/models"
	"github.com/upb/worldedit-policy/services"
)

// Capability strings resolved by the external authorizer
const (
	PermissionUnrestricted = "worldedit.limit.unrestricted"
	PermissionAnyBlock     = "worldedit.anyblock"
)

// EffectivePolygonPointLimit returns the maximum number of polygon points a
// caller may use. -1 means unbounded.
//
// Unrestricted callers, and every caller when the server cap is unbounded,
// get DefaultMaxPolygonalPoints as-is. Everyone else is clamped to the tighter
// of the two caps.
func EffectivePolygonPointLimit(cfg *models.Configuration, unrestricted bool) int {
	return effectiveCap(cfg.DefaultMaxPolygonalPoints, cfg.MaxPolygonalPoints, unrestricted)
}

// EffectiveChangeLimit returns the block-change limit for a new session,
// using the same precedence as EffectivePolygonPointLimit.
func EffectiveChangeLimit(cfg *models.Configuration, unrestricted bool) int {
	return effectiveCap(cfg.DefaultChangeLimit, cfg.MaxChangeLimit, unrestricted)
}

func effectiveCap(perOperation, server int, unrestricted bool) int {
	if unrestricted || server < 0 {
		return perOperation
	}
	if perOperation < 0 {
		return server
	}
	return min(perOperation, server)
}

// CheckRadius rejects a radius above MaxRadius with a limit_exceeded error.
// Negative radii are not rejected here.
func CheckRadius(cfg *models.Configuration, radius float64) error {
	if cfg.MaxRadius > 0 && radius > float64(cfg.MaxRadius) {
		return services.NewLimitError(services.ErrMaxRadiusExceeded.Message, radius, cfg.MaxRadius)
	}
	return nil
}

// CheckBrushRadius rejects a brush radius above MaxBrushRadius
func CheckBrushRadius(cfg *models.Configuration, radius float64) error {
	if cfg.MaxBrushRadius > 0 && radius > float64(cfg.MaxBrushRadius) {
		return services.NewLimitError(services.ErrMaxBrushRadiusExceeded.Message, radius, cfg.MaxBrushRadius)
	}
	return nil
}

// EffectiveButcherRadius resolves the radius for a butcher operation.
// A negative request selects ButcherDefaultRadius; a non-negative
// ButcherMaxRadius then clamps the result, replacing an unbounded radius.
func EffectiveButcherRadius(cfg *models.Configuration, requested int) int {
	radius := requested
	if radius < 0 {
		radius = cfg.ButcherDefaultRadius
	}
	if cfg.ButcherMaxRadius < 0 {
		return radius
	}
	if radius < 0 {
		return cfg.ButcherMaxRadius
	}
	return min(radius, cfg.ButcherMaxRadius)
}

// IsBlockAllowed reports whether a block may be placed.
// bypass is the caller's PermissionAnyBlock capability.
func IsBlockAllowed(cfg *models.Configuration, id models.BlockID, bypass bool) bool {
	if bypass {
		return true
	}
	return !cfg.DisallowedBlocks.Contains(id)
}
