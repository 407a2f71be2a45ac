package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arvicollection/authcore/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := slogx.New(slogx.Config{Service: "authcore", Version: "test", Env: "prod", Level: "warn", Output: &buf})
	logger.Info("dropped")
	logger.Warn("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "kept", line["msg"])
	require.Equal(t, "authcore", line["service"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, slogx.ParseLevel(in), in)
	}
}

func TestSecurityUsesContextLogger(t *testing.T) {
	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&base, nil))
	ctx := slogx.WithContext(context.Background(), slog.New(slog.NewJSONHandler(&scoped, nil)))

	slogx.Security(ctx, baseLogger, "MFA_ENABLED", "user-1", "method", "totp")
	require.Empty(t, base.String())

	var line map[string]any
	require.NoError(t, json.Unmarshal(scoped.Bytes(), &line))
	require.Equal(t, "MFA_ENABLED", line["event"])
	require.Equal(t, "user-1", line["user_id"])
	require.Equal(t, "totp", line["method"])

	slogx.Security(context.Background(), baseLogger, "ACCOUNT_LOCKED", "user-2")
	require.Contains(t, base.String(), "ACCOUNT_LOCKED")
}

func TestHTTPMiddlewareAttachesLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	h := slogx.HTTPMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slogx.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Contains(t, buf.String(), `"req_id":"req-123"`)
	require.Contains(t, buf.String(), `"status":418`)
	require.Contains(t, buf.String(), `"level":"WARN"`)
	require.Equal(t, "req-123", rec.Header().Get(slogx.RequestIDHeader))
}

func TestHTTPMiddlewareGeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	h := slogx.HTTPMiddleware(slog.New(slog.NewJSONHandler(&buf, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Len(t, rec.Header().Get(slogx.RequestIDHeader), 26)
	require.Contains(t, buf.String(), `"bytes":5`)
	require.Contains(t, buf.String(), `"level":"INFO"`)
}
