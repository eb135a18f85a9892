package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "test"}

		err := WriteJSON(w, http.StatusOK, data)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteOK(w, map[string]int{"max_radius": 100})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)

	var response SuccessResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	dataMap := response.Data.(map[string]interface{})
	assert.Equal(t, float64(100), dataMap["max_radius"])
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter) error
		wantStatus int
		wantError  string
		wantMsg    string
	}{
		{
			name: "bad request",
			write: func(w http.ResponseWriter) error {
				return WriteBadRequest(w, "Invalid body", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "bad_request",
			wantMsg:    "Invalid body",
		},
		{
			name: "unauthorized default message",
			write: func(w http.ResponseWriter) error {
				return WriteUnauthorized(w, "")
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "unauthorized",
			wantMsg:    "Authentication required",
		},
		{
			name: "forbidden",
			write: func(w http.ResponseWriter) error {
				return WriteForbidden(w, "Insufficient permissions")
			},
			wantStatus: http.StatusForbidden,
			wantError:  "forbidden",
			wantMsg:    "Insufficient permissions",
		},
		{
			name: "not found default message",
			write: func(w http.ResponseWriter) error {
				return WriteNotFound(w, "")
			},
			wantStatus: http.StatusNotFound,
			wantError:  "not_found",
			wantMsg:    "Resource not found",
		},
		{
			name: "limit exceeded",
			write: func(w http.ResponseWriter) error {
				return WriteLimitExceeded(w, "", map[string]interface{}{"max": 100})
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "limit_exceeded",
			wantMsg:    "Limit exceeded",
		},
		{
			name: "bad gateway",
			write: func(w http.ResponseWriter) error {
				return WriteBadGateway(w, "")
			},
			wantStatus: http.StatusBadGateway,
			wantError:  "bad_gateway",
			wantMsg:    "Upstream dependency failed",
		},
		{
			name: "internal error",
			write: func(w http.ResponseWriter) error {
				return WriteInternalServerError(w, "reload failed")
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
			wantMsg:    "reload failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.wantStatus, w.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantError, response.Error)
			assert.Equal(t, tt.wantMsg, response.Message)
		})
	}
}
