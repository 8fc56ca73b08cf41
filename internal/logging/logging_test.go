package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		env, level string
		want       slog.Level
	}{
		{"production", "", slog.LevelInfo},
		{"production", "info", slog.LevelInfo},
		{"development", "info", slog.LevelDebug},
		{"local", "info", slog.LevelDebug},
		{"production", "debug", slog.LevelDebug},
		{"development", "warn", slog.LevelWarn},
		{"production", "ERROR", slog.LevelError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, parseLevel(tt.env, tt.level), "env=%s level=%s", tt.env, tt.level)
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "production", "json", "info").Info("hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "hello", rec["msg"])
	require.Equal(t, "v", rec["k"])

	buf.Reset()
	newLogger(&buf, "production", "text", "info").Info("hello")
	require.Contains(t, buf.String(), "msg=hello")
}

func TestMiddlewareRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "production", "json", "info")

	var seen *slog.Logger
	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/ping", func(c *gin.Context) {
		seen = FromGin(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	rid := rec.Header().Get(HeaderRequestID)
	require.NotEmpty(t, rid)
	require.NotNil(t, seen)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, rid, line["request_id"])
	require.Equal(t, "/ping", line["path"])
	require.EqualValues(t, http.StatusNoContent, line["status"])
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	r := gin.New()
	r.Use(Middleware(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
}

func TestFromGinFallsBackToDefault(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	require.Same(t, slog.Default(), FromGin(c))
}
