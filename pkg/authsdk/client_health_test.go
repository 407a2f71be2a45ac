package authsdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arvicollection/authcore/pkg/authsdk"
	"github.com/arvicollection/authcore/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestGetLiveness(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/livez", r.URL.Path)
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{Status: "ok", Version: "v9"})
	}))
	defer srv.Close()

	health, err := authsdk.NewSDKClient(srv.URL+"/").GetLiveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "v9", health.Version)
}

func TestGetReadinessDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, authsdk.HealthResponse{
			Status: "degraded",
			Checks: &authsdk.HealthChecks{Store: "error: connection refused", Signer: "ok"},
		})
	}))
	defer srv.Close()

	health, err := authsdk.NewSDKClient(srv.URL).GetReadiness(context.Background())
	require.ErrorIs(t, err, authsdk.ErrNotReady)
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, "error: connection refused", health.Checks.Store)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "slow down")
	}))
	defer srv.Close()

	_, err := authsdk.NewSDKClient(srv.URL).GetLiveness(context.Background())
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	require.Equal(t, "rate_limited", apiErr.Code)
	require.Equal(t, "slow down", apiErr.Message)
	require.NotErrorIs(t, err, authsdk.ErrNotReady)
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := authsdk.NewSDKClient(url).GetLiveness(context.Background())
	require.ErrorContains(t, err, "failed to send request")
}
