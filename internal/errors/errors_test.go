package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid request", InvalidRequest("bad", nil), http.StatusBadRequest},
		{"invalid condition", InvalidCondition("bogus", []string{"normal"}), http.StatusBadRequest},
		{"unknown organ", UnknownOrgan("liver"), http.StatusNotFound},
		{"upstream 400 relayed", UpstreamStatus("cardiac", 400, ""), http.StatusBadRequest},
		{"upstream 3xx", UpstreamStatus("cardiac", 302, ""), http.StatusBadGateway},
		{"upstream timeout", UpstreamTimeout("cardiac", nil), http.StatusGatewayTimeout},
		{"upstream offline", UpstreamOffline("cardiac", nil), http.StatusServiceUnavailable},
		{"upstream error", UpstreamError("cardiac", nil), http.StatusBadGateway},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", NotFound("x")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCodeInvalidCondition, CodeOf(InvalidCondition("x", nil)))
	assert.Equal(t, ErrorCodeInternal, CodeOf(fmt.Errorf("plain")))
	assert.True(t, Is(fmt.Errorf("wrap: %w", UnknownOrgan("x")), ErrorCodeNotFound))
	assert.False(t, Is(nil, ErrorCodeNotFound))
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := UpstreamOffline("neural", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Cannot connect to API: dial tcp: connection refused", err.Error())
}

func TestHandler_HandleError(t *testing.T) {
	h := NewHandler(zap.NewNop())

	t.Run("invalid condition lists valid set", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/cardiac/simulate/bogus", nil)
		req.Header.Set("X-Request-ID", "req-1")
		w := httptest.NewRecorder()

		h.HandleError(w, req, InvalidCondition("bogus", []string{"normal", "tachycardia"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Invalid condition", body["error"])
		assert.Equal(t, "req-1", body["request_id"])
		assert.ElementsMatch(t, []interface{}{"normal", "tachycardia"}, body["valid_conditions"])
	})

	t.Run("client errors render the message without the cause", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/cardiac/parameters", nil)
		w := httptest.NewRecorder()

		h.HandleError(w, req, InvalidRequest("Invalid JSON body", fmt.Errorf("invalid character '}' looking for beginning of object key string")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Invalid JSON body", body["error"])
		assert.NotContains(t, w.Body.String(), "invalid character")
	})

	t.Run("internal errors are opaque", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/cardiac/status", nil)
		w := httptest.NewRecorder()

		h.HandleError(w, req, fmt.Errorf("redis: secret-host:6379 refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "secret-host")
		assert.Contains(t, w.Body.String(), "internal server error")
	})
}
