package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/worldedit-policy/models"
	"github.com/upb/worldedit-policy/services/limits"
	"go.uber.org/zap"
)

// MockAuthorizer is a mock implementation of limits.Authorizer
type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) HasPermission(ctx context.Context, callerID uuid.UUID, permission string) (bool, error) {
	args := m.Called(ctx, callerID, permission)
	return args.Bool(0), args.Error(1)
}

func TestPermissionKey_String(t *testing.T) {
	callerID := uuid.New()
	key := PermissionKey{CallerID: callerID, Permission: limits.PermissionUnrestricted}
	assert.Equal(t, callerID.String()+":worldedit.limit.unrestricted", key.String())
}

func TestPermissionCache_HitAndMiss(t *testing.T) {
	ctx := context.Background()
	callerID := uuid.New()

	upstream := new(MockAuthorizer)
	upstream.On("HasPermission", ctx, callerID, limits.PermissionUnrestricted).Return(true, nil).Once()

	cache := NewPermissionCache(upstream, 10, 5*time.Minute, zap.NewNop())

	allowed, err := cache.HasPermission(ctx, callerID, limits.PermissionUnrestricted)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = cache.HasPermission(ctx, callerID, limits.PermissionUnrestricted)
	require.NoError(t, err)
	assert.True(t, allowed)

	upstream.AssertExpectations(t)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestPermissionCache_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	callerID := uuid.New()

	upstream := new(MockAuthorizer)
	upstream.On("HasPermission", ctx, callerID, limits.PermissionAnyBlock).Return(false, errors.New("timeout")).Once()
	upstream.On("HasPermission", ctx, callerID, limits.PermissionAnyBlock).Return(false, nil).Once()

	cache := NewPermissionCache(upstream, 10, time.Minute, zap.NewNop())

	_, err := cache.HasPermission(ctx, callerID, limits.PermissionAnyBlock)
	require.Error(t, err)
	assert.Equal(t, 0, cache.Stats().Size)

	allowed, err := cache.HasPermission(ctx, callerID, limits.PermissionAnyBlock)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 1, cache.Stats().Size)
	upstream.AssertExpectations(t)
}

func TestPermissionCache_TTLExpiration(t *testing.T) {
	ctx := context.Background()
	callerID := uuid.New()

	upstream := new(MockAuthorizer)
	upstream.On("HasPermission", ctx, callerID, limits.PermissionUnrestricted).Return(true, nil).Twice()

	cache := NewPermissionCache(upstream, 10, 50*time.Millisecond, zap.NewNop())

	_, err := cache.HasPermission(ctx, callerID, limits.PermissionUnrestricted)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	_, err = cache.HasPermission(ctx, callerID, limits.PermissionUnrestricted)
	require.NoError(t, err)
	upstream.AssertExpectations(t)
}

func TestPermissionCache_LRUEviction(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockAuthorizer)
	upstream.On("HasPermission", ctx, mock.Anything, limits.PermissionUnrestricted).Return(false, nil)

	cache := NewPermissionCache(upstream, 2, time.Minute, zap.NewNop())
	first, second, third := uuid.New(), uuid.New(), uuid.New()

	_, _ = cache.HasPermission(ctx, first, limits.PermissionUnrestricted)
	_, _ = cache.HasPermission(ctx, second, limits.PermissionUnrestricted)
	// touch first so second becomes least recently used
	_, _ = cache.HasPermission(ctx, first, limits.PermissionUnrestricted)
	_, _ = cache.HasPermission(ctx, third, limits.PermissionUnrestricted)

	assert.Equal(t, 2, cache.Stats().Size)

	_, hit, _ := cache.get(PermissionKey{CallerID: first, Permission: limits.PermissionUnrestricted})
	assert.True(t, hit)
	_, hit, _ = cache.get(PermissionKey{CallerID: second, Permission: limits.PermissionUnrestricted})
	assert.False(t, hit)
	_, hit, _ = cache.get(PermissionKey{CallerID: third, Permission: limits.PermissionUnrestricted})
	assert.True(t, hit)
}

func TestPermissionCache_Invalidation(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockAuthorizer)
	upstream.On("HasPermission", ctx, mock.Anything, mock.Anything).Return(true, nil)

	cache := NewPermissionCache(upstream, 10, time.Minute, zap.NewNop())
	alice, bob := uuid.New(), uuid.New()

	_, _ = cache.HasPermission(ctx, alice, limits.PermissionUnrestricted)
	_, _ = cache.HasPermission(ctx, alice, limits.PermissionAnyBlock)
	_, _ = cache.HasPermission(ctx, bob, limits.PermissionUnrestricted)
	require.Equal(t, 3, cache.Stats().Size)

	cache.InvalidateCaller(alice)
	assert.Equal(t, 1, cache.Stats().Size)

	cache.Clear()
	assert.Equal(t, 0, cache.Stats().Size)
}

func TestPermissionCache_ClearedOnPolicyLoad(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockAuthorizer)
	upstream.On("HasPermission", ctx, mock.Anything, mock.Anything).Return(true, nil)

	cache := NewPermissionCache(upstream, 10, time.Minute, zap.NewNop())
	store := NewStore(staticLoader(nil), zap.NewNop())
	store.Subscribe(cache.OnConfigurationLoaded)

	_, _ = cache.HasPermission(ctx, uuid.New(), limits.PermissionUnrestricted)
	require.Equal(t, 1, cache.Stats().Size)

	_, err := store.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Stats().Size)
}

func TestPermissionCache_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockAuthorizer)
	upstream.On("HasPermission", ctx, mock.Anything, mock.Anything).Return(true, nil)

	cache := NewPermissionCache(upstream, 10, 20*time.Millisecond, zap.NewNop())
	_, _ = cache.HasPermission(ctx, uuid.New(), limits.PermissionUnrestricted)
	_, _ = cache.HasPermission(ctx, uuid.New(), limits.PermissionUnrestricted)

	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 2, cache.CleanupExpired())
	assert.Equal(t, 0, cache.Stats().Size)
}

func TestPermissionCache_CleanupWorker(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockAuthorizer)
	upstream.On("HasPermission", ctx, mock.Anything, mock.Anything).Return(true, nil)

	cache := NewPermissionCache(upstream, 10, 10*time.Millisecond, zap.NewNop())
	_, _ = cache.HasPermission(ctx, uuid.New(), limits.PermissionUnrestricted)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		cache.StartCleanupWorker(10*time.Millisecond, stop)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return cache.Stats().Size == 0
	}, time.Second, 10*time.Millisecond)

	close(stop)
	<-done
}

var _ limits.Authorizer = (*PermissionCache)(nil)

// gatedAuthorizer reads its answer, then blocks the first lookup until
// released so an invalidation can land while the lookup is in flight.
type gatedAuthorizer struct {
	mu      sync.Mutex
	answer  bool
	calls   int
	entered chan struct{}
	release chan struct{}
}

func newGatedAuthorizer(answer bool) *gatedAuthorizer {
	return &gatedAuthorizer{
		answer:  answer,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedAuthorizer) HasPermission(ctx context.Context, callerID uuid.UUID, permission string) (bool, error) {
	g.mu.Lock()
	answer := g.answer
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()

	if first {
		close(g.entered)
		<-g.release
	}
	return answer, nil
}

func (g *gatedAuthorizer) setAnswer(answer bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answer = answer
}

func TestPermissionCache_InvalidationDuringLookupIsNotOverwritten(t *testing.T) {
	tests := []struct {
		name       string
		invalidate func(cache *PermissionCache, callerID uuid.UUID)
	}{
		{
			name: "invalidate caller",
			invalidate: func(cache *PermissionCache, callerID uuid.UUID) {
				cache.InvalidateCaller(callerID)
			},
		},
		{
			name: "policy load",
			invalidate: func(cache *PermissionCache, callerID uuid.UUID) {
				cache.OnConfigurationLoaded(context.Background(), models.NewDefaultConfiguration())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			callerID := uuid.New()
			upstream := newGatedAuthorizer(true)
			cache := NewPermissionCache(upstream, 10, time.Minute, zap.NewNop())

			inFlight := make(chan bool, 1)
			go func() {
				allowed, _ := cache.HasPermission(ctx, callerID, limits.PermissionUnrestricted)
				inFlight <- allowed
			}()

			<-upstream.entered
			upstream.setAnswer(false)
			tt.invalidate(cache, callerID)
			close(upstream.release)

			assert.True(t, <-inFlight, "the in-flight lookup still returns what it read")
			assert.Equal(t, 0, cache.Stats().Size, "a stale answer must not be cached")

			allowed, err := cache.HasPermission(ctx, callerID, limits.PermissionUnrestricted)
			require.NoError(t, err)
			assert.False(t, allowed)
		})
	}
}

func TestPermissionCache_OnConfigurationLoadedIgnoresSnapshotContents(t *testing.T) {
	cache := NewPermissionCache(new(MockAuthorizer), 1, time.Minute, zap.NewNop())
	cache.set(PermissionKey{CallerID: uuid.New(), Permission: "x"}, true, 0)

	cache.OnConfigurationLoaded(context.Background(), models.NewDefaultConfiguration())
	assert.Equal(t, 0, cache.Stats().Size)
}
