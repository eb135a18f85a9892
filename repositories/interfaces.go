package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// WildcardPermission grants every permission to its holder
const WildcardPermission = "*"

// PermissionRepository answers and manages per-caller permission grants
type PermissionRepository interface {
	// HasPermission reports whether the caller holds the permission or the wildcard
	HasPermission(ctx context.Context, callerID uuid.UUID, permission string) (bool, error)

	// Grant gives a caller a permission; granting twice is a no-op
	Grant(ctx context.Context, callerID uuid.UUID, permission string) error

	// Revoke removes a permission from a caller
	Revoke(ctx context.Context, callerID uuid.UUID, permission string) error

	// ListByCaller returns the caller's permissions in ascending order
	ListByCaller(ctx context.Context, callerID uuid.UUID) ([]string, error)
}

// StaticPermissions is an in-memory PermissionRepository used when no
// database is configured.
type StaticPermissions struct {
	mu     sync.RWMutex
	grants map[uuid.UUID]map[string]struct{}
}

// NewStaticPermissions creates an empty in-memory repository
func NewStaticPermissions() *StaticPermissions {
	return &StaticPermissions{grants: make(map[uuid.UUID]map[string]struct{})}
}

func (s *StaticPermissions) HasPermission(ctx context.Context, callerID uuid.UUID, permission string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	perms := s.grants[callerID]
	if _, ok := perms[WildcardPermission]; ok {
		return true, nil
	}
	_, ok := perms[permission]
	return ok, nil
}

func (s *StaticPermissions) Grant(ctx context.Context, callerID uuid.UUID, permission string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	perms, ok := s.grants[callerID]
	if !ok {
		perms = make(map[string]struct{})
		s.grants[callerID] = perms
	}
	perms[permission] = struct{}{}
	return nil
}

func (s *StaticPermissions) Revoke(ctx context.Context, callerID uuid.UUID, permission string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	perms := s.grants[callerID]
	delete(perms, permission)
	if len(perms) == 0 {
		delete(s.grants, callerID)
	}
	return nil
}

func (s *StaticPermissions) ListByCaller(ctx context.Context, callerID uuid.UUID) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.grants[callerID]))
	for p := range s.grants[callerID] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
