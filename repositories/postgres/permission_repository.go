package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/worldedit-policy/repositories"
	"go.uber.org/zap"
)

const (
	hasPermissionQuery = `
		SELECT EXISTS (
			SELECT 1 FROM permission_grants
			WHERE caller_id = $1 AND (permission = $2 OR permission = $3)
		)
	`
	grantPermissionQuery = `
		INSERT INTO permission_grants (caller_id, permission)
		VALUES ($1, $2)
		ON CONFLICT (caller_id, permission) DO NOTHING
	`
	revokePermissionQuery = `
		DELETE FROM permission_grants
		WHERE caller_id = $1 AND permission = $2
	`
	listPermissionsQuery = `
		SELECT permission FROM permission_grants
		WHERE caller_id = $1
		ORDER BY permission ASC
	`
)

// PermissionRepository implements repositories.PermissionRepository
type PermissionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *DB, logger *zap.Logger) *PermissionRepository {
	return &PermissionRepository{
		db:     db,
		logger: logger,
	}
}

var _ repositories.PermissionRepository = (*PermissionRepository)(nil)

// HasPermission reports whether the caller holds the permission or the wildcard grant
func (r *PermissionRepository) HasPermission(ctx context.Context, callerID uuid.UUID, permission string) (bool, error) {
	var granted bool
	err := r.db.QueryRowContext(ctx, hasPermissionQuery,
		callerID, permission, repositories.WildcardPermission,
	).Scan(&granted)
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return granted, nil
}

// Grant gives a caller a permission
func (r *PermissionRepository) Grant(ctx context.Context, callerID uuid.UUID, permission string) error {
	if _, err := r.db.ExecContext(ctx, grantPermissionQuery, callerID, permission); err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}

	r.logger.Debug("permission granted",
		zap.String("caller_id", callerID.String()),
		zap.String("permission", permission))
	return nil
}

// Revoke removes a permission from a caller
func (r *PermissionRepository) Revoke(ctx context.Context, callerID uuid.UUID, permission string) error {
	if _, err := r.db.ExecContext(ctx, revokePermissionQuery, callerID, permission); err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}

	r.logger.Debug("permission revoked",
		zap.String("caller_id", callerID.String()),
		zap.String("permission", permission))
	return nil
}

// ListByCaller returns the caller's permissions in ascending order
func (r *PermissionRepository) ListByCaller(ctx context.Context, callerID uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, listPermissionsQuery, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permissions: %w", err)
	}
	return perms, nil
}
