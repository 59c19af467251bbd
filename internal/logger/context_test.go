package logger

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	entry := logrus.New().WithField("session_id", "s-1")
	ctx := WithEntry(context.Background(), entry)
	assert.Equal(t, "s-1", FromContext(ctx, nil).Data["session_id"])

	fallback := logrus.New()
	assert.Same(t, fallback, FromContext(context.Background(), fallback).Logger)
	assert.Same(t, logrus.StandardLogger(), FromContext(context.Background(), nil).Logger)
	assert.Empty(t, RequestID(context.Background()))
}

func TestRequestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		header    map[string]string
		wantLevel string
		wantMsg   string
		wantIP    string
	}{
		{
			name:      "poll logs at debug",
			status:    http.StatusOK,
			header:    map[string]string{"X-Request-ID": "req-9", "X-Forwarded-For": "10.0.0.7, 172.16.0.1"},
			wantLevel: `"level":"debug"`,
			wantMsg:   "Request completed",
			wantIP:    `"remote_ip":"10.0.0.7"`,
		},
		{
			name:      "server error logs at warn",
			status:    http.StatusServiceUnavailable,
			header:    map[string]string{"X-Request-ID": "req-9", "X-Real-IP": "10.1.1.1"},
			wantLevel: `"level":"warning"`,
			wantMsg:   "Request failed",
			wantIP:    `"remote_ip":"10.1.1.1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logrus.New()
			log.SetOutput(&buf)
			log.SetLevel(logrus.DebugLevel)
			log.SetFormatter(&logrus.JSONFormatter{})

			handler := RequestLoggerMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "req-9", RequestID(r.Context()))
				assert.Equal(t, "req-9", FromContext(r.Context(), nil).Data["request_id"])
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("four"))
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/pools", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			out := buf.String()
			assert.Equal(t, tt.status, rr.Code)
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, tt.wantMsg)
			assert.Contains(t, out, tt.wantIP)
			assert.Contains(t, out, `"bytes":4`)
			assert.Contains(t, out, `"path":"/api/v1/pools"`)
		})
	}
}

func TestRequestLoggerMiddlewareGeneratesID(t *testing.T) {
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})

	var seen string
	handler := RequestLoggerMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, req.Header.Get("X-Request-ID"))
}

func TestClientIPStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:51234"
	assert.Equal(t, "192.0.2.10", clientIP(req))
}

func TestResponseWriterFirstStatusWins(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())
	assert.Equal(t, http.StatusOK, rw.StatusCode())

	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusBadRequest)
	assert.Equal(t, http.StatusAccepted, rw.StatusCode())

	n, err := rw.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, rw.Bytes())
}
