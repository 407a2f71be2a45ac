package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/arvicollection/authcore/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.LogLevel = "error"
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.DatabaseFile = filepath.Join(dir, "auth.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.SessionKeyFile = filepath.Join(dir, "session.key")
	cfg.MasterKey = "app-test-master-key"
	return cfg
}

func TestApplicationLoginRoundTrip(t *testing.T) {
	for _, driver := range []string{DriverFile, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.StoreDriver = driver

			application, err := New(cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = application.db.Close() })

			ctx := context.Background()
			svc := application.Services()

			hash, err := svc.Credentials.HashPassword("Sh0pper!Pass")
			require.NoError(t, err)
			u, err := application.db.Users().CreateUser(ctx, domain.User{Email: "shopper@example.com", PasswordHash: hash})
			require.NoError(t, err)

			res, err := svc.Login.Login(ctx, "shopper@example.com", "Sh0pper!Pass")
			require.NoError(t, err)
			require.False(t, res.MFARequired)
			require.NotNil(t, res.Session)

			claims, err := svc.Sessions.Validate(ctx, res.Session.Token)
			require.NoError(t, err)
			require.Equal(t, u.ID, claims.Subject)
			require.Equal(t, []string{jwtx.AMRPassword}, claims.AMR)

			rec := httptest.NewRecorder()
			application.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			require.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestApplicationSessionKeySurvivesRestart(t *testing.T) {
	cfg := testConfig(t)

	first, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, first.db.Close())

	second, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.db.Close() })

	require.Equal(t, first.signer.KID(), second.signer.KID())
}

func TestApplicationRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "postgres"

	_, err := New(cfg)
	require.ErrorContains(t, err, "unknown store driver")
}

func TestApplicationOpsServer(t *testing.T) {
	application, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.db.Close() })

	srv := httptest.NewServer(application.server.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/livez")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), BuildVersion)
}
