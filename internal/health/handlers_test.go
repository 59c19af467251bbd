package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/ingex/pkg/version"
)

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus Status
		wantCode   int
	}{
		{"ok", nil, StatusOK, http.StatusOK},
		{"degraded", Degraded(errors.New("pool full")), StatusDegraded, http.StatusOK},
		{"down", errors.New("redis gone"), StatusDown, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManager(logrus.New())
			manager.Register(&mockChecker{name: "test", err: tt.err})
			handler := NewHandler(manager)

			rr := httptest.NewRecorder()
			handler.HandleHealth(rr, httptest.NewRequest("GET", "/health", nil))

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Equal(t, "no-cache, no-store, must-revalidate", rr.Header().Get("Cache-Control"))

			var response Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Equal(t, tt.wantStatus, response.Status)
			assert.Equal(t, version.Version, response.Version)
			assert.NotEmpty(t, response.Uptime)
			require.Contains(t, response.Checks, "test")
			assert.Equal(t, tt.wantStatus, response.Checks["test"].Status)
		})
	}
}

func TestHandleReady(t *testing.T) {
	manager := NewManager(logrus.New())
	handler := NewHandler(manager)

	// nothing has run yet
	rr := httptest.NewRecorder()
	handler.HandleReady(rr, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	manager.Register(&mockChecker{name: "test"})
	manager.RunChecks(context.Background())

	rr = httptest.NewRecorder()
	handler.HandleReady(rr, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleLive(t *testing.T) {
	handler := NewHandler(NewManager(logrus.New()))

	rr := httptest.NewRecorder()
	handler.HandleLive(rr, httptest.NewRequest("GET", "/live", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "alive", body["status"])
}
