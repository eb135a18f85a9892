// Package policy owns the process-wide policy snapshot.
//
// A Store publishes fully-built, validated configurations through an atomic
// pointer swap. Readers call Current and never block; a reload builds a new
// value, notifies subscribers and only then makes it visible.
package policy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/upb/worldedit-policy/models"
	"github.com/upb/worldedit-policy/services"
	"github.com/upb/worldedit-policy/utils"
	"go.uber.org/zap"
)

// Loader produces a fully-populated configuration
type Loader interface {
	Load(ctx context.Context) (*models.Configuration, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context) (*models.Configuration, error)

// Load calls f(ctx)
func (f LoaderFunc) Load(ctx context.Context) (*models.Configuration, error) {
	return f(ctx)
}

// Subscriber is notified once per loaded snapshot, after validation and
// before the snapshot becomes visible through Current.
type Subscriber func(ctx context.Context, cfg *models.Configuration)

// Store holds the published policy snapshot
type Store struct {
	loader Loader
	logger *zap.Logger

	current atomic.Pointer[models.Configuration]
	version atomic.Uint64

	// mu serializes publishers and guards subscribers
	mu          sync.Mutex
	subscribers []Subscriber
}

// NewStore creates a Store serving the built-in defaults until the first load
func NewStore(loader Loader, logger *zap.Logger) *Store {
	s := &Store{
		loader: loader,
		logger: logger,
	}
	s.current.Store(models.NewDefaultConfiguration())
	return s
}

// Current returns the published snapshot. The result must not be modified.
func (s *Store) Current() *models.Configuration {
	return s.current.Load()
}

// Version returns the number of snapshots published so far
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Subscribe registers sub for every subsequent load
func (s *Store) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, sub)
}

// Reload loads a new snapshot and publishes it. On failure the previously
// published snapshot stays in place.
func (s *Store) Reload(ctx context.Context) (*models.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.loader.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load policy configuration", zap.Error(err))
		return nil, services.WrapInternal(services.ErrPolicyLoadFailed.Message, err)
	}
	if cfg == nil {
		return nil, services.WrapInternal(services.ErrPolicyLoadFailed.Message, fmt.Errorf("loader returned no configuration"))
	}

	if err := s.publishLocked(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Publish validates and publishes an already-built snapshot
func (s *Store) Publish(ctx context.Context, cfg *models.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.publishLocked(ctx, cfg)
}

// publishLocked must be called with mu held
func (s *Store) publishLocked(ctx context.Context, cfg *models.Configuration) error {
	if err := utils.ValidateStruct(cfg); err != nil {
		s.logger.Warn("rejected invalid policy configuration", zap.Error(err))
		return services.WrapError(services.ErrorTypeValidation, services.ErrInvalidPolicyConfig.Message, err)
	}

	for _, sub := range s.subscribers {
		sub(ctx, cfg)
	}

	s.current.Store(cfg)
	version := s.version.Add(1)

	s.logger.Info("policy configuration published",
		zap.Uint64("version", version),
		zap.Int("max_radius", cfg.MaxRadius),
		zap.Int("max_polygonal_points", cfg.MaxPolygonalPoints),
		zap.Int("default_max_polygonal_points", cfg.DefaultMaxPolygonalPoints),
		zap.Int("max_change_limit", cfg.MaxChangeLimit),
		zap.Int("disallowed_blocks", cfg.DisallowedBlocks.Len()))

	return nil
}
