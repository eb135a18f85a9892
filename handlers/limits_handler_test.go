package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/worldedit-policy/models"
	"github.com/upb/worldedit-policy/services/limits"
	"github.com/upb/worldedit-policy/services/policy"
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

func newLimitsFixture(t *testing.T, mutate func(*models.Configuration), authorizer limits.Authorizer) (*LimitsHandler, *policy.Store) {
	t.Helper()
	logger := zap.NewNop()
	store := policy.NewStore(policy.LoaderFunc(func(ctx context.Context) (*models.Configuration, error) {
		cfg := models.NewDefaultConfiguration()
		if mutate != nil {
			mutate(cfg)
		}
		return cfg, nil
	}), logger)
	_, err := store.Reload(context.Background())
	require.NoError(t, err)

	return NewLimitsHandler(store, limits.NewEvaluator(store, authorizer, logger), logger), store
}

func limitsRouter(h *LimitsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/limits", h.HandleGetLimits)
	r.Post("/limits/reload", h.HandleReload)
	r.Post("/limits/radius/check", h.HandleCheckRadius)
	r.Post("/limits/brush-radius/check", h.HandleCheckBrushRadius)
	r.Get("/limits/polygon-points", h.HandlePolygonPointLimit)
	r.Get("/limits/change-limit", h.HandleChangeLimit)
	r.Get("/limits/blocks/{blockID}", h.HandleBlockPlacement)
	r.Get("/limits/butcher-radius", h.HandleButcherRadius)
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestHandleGetLimits(t *testing.T) {
	handler, _ := newLimitsFixture(t, func(cfg *models.Configuration) {
		cfg.MaxRadius = 64
	}, new(MockAuthorizer))

	req := httptest.NewRequest(http.MethodGet, "/limits", nil)
	w := httptest.NewRecorder()
	limitsRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["version"])

	cfg := data["configuration"].(map[string]interface{})
	assert.Equal(t, float64(64), cfg["max_radius"])
	assert.Equal(t, float64(20), cfg["max_polygonal_points"])
	assert.Len(t, cfg["disallowed_blocks"], len(models.DefaultDisallowedBlocks))
}

func TestHandleReload(t *testing.T) {
	t.Run("publishes a new version", func(t *testing.T) {
		handler, store := newLimitsFixture(t, nil, new(MockAuthorizer))

		req := httptest.NewRequest(http.MethodPost, "/limits/reload", nil)
		w := httptest.NewRecorder()
		limitsRouter(handler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uint64(2), store.Version())

		data := decodeBody(t, w)["data"].(map[string]interface{})
		assert.Equal(t, float64(2), data["version"])
	})

	t.Run("loader failure", func(t *testing.T) {
		logger := zap.NewNop()
		store := policy.NewStore(policy.LoaderFunc(func(ctx context.Context) (*models.Configuration, error) {
			return nil, errors.New("disk on fire")
		}), logger)
		handler := NewLimitsHandler(store, limits.NewEvaluator(store, new(MockAuthorizer), logger), logger)

		req := httptest.NewRequest(http.MethodPost, "/limits/reload", nil)
		w := httptest.NewRecorder()
		limitsRouter(handler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, uint64(0), store.Version())
	})

	t.Run("invalid configuration", func(t *testing.T) {
		logger := zap.NewNop()
		store := policy.NewStore(policy.LoaderFunc(func(ctx context.Context) (*models.Configuration, error) {
			cfg := models.NewDefaultConfiguration()
			cfg.BlocksPerBatch = 0
			return cfg, nil
		}), logger)
		handler := NewLimitsHandler(store, limits.NewEvaluator(store, new(MockAuthorizer), logger), logger)

		req := httptest.NewRequest(http.MethodPost, "/limits/reload", nil)
		w := httptest.NewRecorder()
		limitsRouter(handler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleCheckRadius(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		check      func(*testing.T, map[string]interface{})
	}{
		{
			name:       "within limit",
			path:       "/limits/radius/check",
			body:       `{"radius": 50}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, resp map[string]interface{}) {
				data := resp["data"].(map[string]interface{})
				assert.Equal(t, true, data["allowed"])
				assert.Equal(t, float64(50), data["radius"])
			},
		},
		{
			name:       "at the limit",
			path:       "/limits/radius/check",
			body:       `{"radius": 100}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "above the limit",
			path:       "/limits/radius/check",
			body:       `{"radius": 150}`,
			wantStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, resp map[string]interface{}) {
				assert.Equal(t, "limit_exceeded", resp["error"])
				assert.Equal(t, "maximum radius exceeded", resp["message"])
				details := resp["details"].(map[string]interface{})
				assert.Equal(t, float64(150), details["requested"])
				assert.Equal(t, float64(100), details["max"])
			},
		},
		{
			name:       "brush radius above the limit",
			path:       "/limits/brush-radius/check",
			body:       `{"radius": 7}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "brush radius within limit",
			path:       "/limits/brush-radius/check",
			body:       `{"radius": 6}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing radius",
			path:       "/limits/radius/check",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			path:       "/limits/radius/check",
			body:       `{"radius":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	handler, _ := newLimitsFixture(t, func(cfg *models.Configuration) {
		cfg.MaxRadius = 100
	}, new(MockAuthorizer))
	router := limitsRouter(handler)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.check != nil {
				tt.check(t, decodeBody(t, w))
			}
		})
	}
}

func TestHandlePolygonPointLimit(t *testing.T) {
	callerID := uuid.New()

	t.Run("restricted caller", func(t *testing.T) {
		authorizer := new(MockAuthorizer)
		authorizer.On("HasPermission", mock.Anything, callerID, limits.PermissionUnrestricted).Return(false, nil)
		handler, _ := newLimitsFixture(t, nil, authorizer)

		req := httptest.NewRequest(http.MethodGet, "/limits/polygon-points?caller_id="+callerID.String(), nil)
		w := httptest.NewRecorder()
		limitsRouter(handler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeBody(t, w)["data"].(map[string]interface{})
		assert.Equal(t, callerID.String(), data["caller_id"])
		assert.Equal(t, float64(20), data["limit"])
		authorizer.AssertExpectations(t)
	})

	t.Run("unrestricted caller", func(t *testing.T) {
		authorizer := new(MockAuthorizer)
		authorizer.On("HasPermission", mock.Anything, callerID, limits.PermissionUnrestricted).Return(true, nil)
		handler, _ := newLimitsFixture(t, nil, authorizer)

		req := httptest.NewRequest(http.MethodGet, "/limits/polygon-points?caller_id="+callerID.String(), nil)
		w := httptest.NewRecorder()
		limitsRouter(handler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeBody(t, w)["data"].(map[string]interface{})
		assert.Equal(t, float64(-1), data["limit"])
	})

	t.Run("authorizer failure", func(t *testing.T) {
		authorizer := new(MockAuthorizer)
		authorizer.On("HasPermission", mock.Anything, callerID, limits.PermissionUnrestricted).Return(false, errors.New("timeout"))
		handler, _ := newLimitsFixture(t, nil, authorizer)

		req := httptest.NewRequest(http.MethodGet, "/limits/polygon-points?caller_id="+callerID.String(), nil)
		w := httptest.NewRecorder()
		limitsRouter(handler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("missing caller", func(t *testing.T) {
		handler, _ := newLimitsFixture(t, nil, new(MockAuthorizer))

		req := httptest.NewRequest(http.MethodGet, "/limits/polygon-points", nil)
		w := httptest.NewRecorder()
		limitsRouter(handler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "caller_id is required", decodeBody(t, w)["message"])
	})

	t.Run("malformed caller", func(t *testing.T) {
		handler, _ := newLimitsFixture(t, nil, new(MockAuthorizer))

		req := httptest.NewRequest(http.MethodGet, "/limits/polygon-points?caller_id=steve", nil)
		w := httptest.NewRecorder()
		limitsRouter(handler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleChangeLimit(t *testing.T) {
	callerID := uuid.New()
	authorizer := new(MockAuthorizer)
	authorizer.On("HasPermission", mock.Anything, callerID, limits.PermissionUnrestricted).Return(false, nil)

	handler, _ := newLimitsFixture(t, func(cfg *models.Configuration) {
		cfg.DefaultChangeLimit = 5000
		cfg.MaxChangeLimit = 1000
	}, authorizer)

	req := httptest.NewRequest(http.MethodGet, "/limits/change-limit?caller_id="+callerID.String(), nil)
	w := httptest.NewRecorder()
	limitsRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1000), data["limit"])
}

func TestHandleBlockPlacement(t *testing.T) {
	callerID := uuid.New()

	tests := []struct {
		name        string
		blockID     string
		bypass      bool
		expectCheck bool
		wantStatus  int
		wantAllowed bool
	}{
		{name: "ordinary block", blockID: "1", wantStatus: http.StatusOK, wantAllowed: true},
		{name: "disallowed block", blockID: "46", expectCheck: true, wantStatus: http.StatusOK, wantAllowed: false},
		{name: "disallowed block with bypass", blockID: "46", bypass: true, expectCheck: true, wantStatus: http.StatusOK, wantAllowed: true},
		{name: "bad block id", blockID: "tnt", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authorizer := new(MockAuthorizer)
			if tt.expectCheck {
				authorizer.On("HasPermission", mock.Anything, callerID, limits.PermissionAnyBlock).Return(tt.bypass, nil)
			}
			handler, _ := newLimitsFixture(t, nil, authorizer)

			req := httptest.NewRequest(http.MethodGet, "/limits/blocks/"+tt.blockID+"?caller_id="+callerID.String(), nil)
			w := httptest.NewRecorder()
			limitsRouter(handler).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				data := decodeBody(t, w)["data"].(map[string]interface{})
				assert.Equal(t, tt.wantAllowed, data["allowed"])
			}
			authorizer.AssertExpectations(t)
		})
	}
}

func TestHandleButcherRadius(t *testing.T) {
	handler, _ := newLimitsFixture(t, func(cfg *models.Configuration) {
		cfg.ButcherDefaultRadius = 20
		cfg.ButcherMaxRadius = 50
	}, new(MockAuthorizer))
	router := limitsRouter(handler)

	tests := []struct {
		query      string
		wantStatus int
		wantRadius float64
	}{
		{query: "", wantStatus: http.StatusOK, wantRadius: 20},
		{query: "?requested=30", wantStatus: http.StatusOK, wantRadius: 30},
		{query: "?requested=80", wantStatus: http.StatusOK, wantRadius: 50},
		{query: "?requested=far", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run("requested"+tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/limits/butcher-radius"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				data := decodeBody(t, w)["data"].(map[string]interface{})
				assert.Equal(t, tt.wantRadius, data["radius"])
			}
		})
	}
}
