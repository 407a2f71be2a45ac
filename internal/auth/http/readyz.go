package http

import (
	"net/http"
	"time"

	"github.com/arvicollection/authcore/internal/auth/store"
	"github.com/arvicollection/authcore/pkg/authsdk"
	"github.com/arvicollection/authcore/pkg/httpx"
	"github.com/arvicollection/authcore/pkg/jwtx"
)

// ReadyzHandler reports 503 until the store answers and a session signer is
// loaded.
func ReadyzHandler(startTime time.Time, version string, st store.Store, signer *jwtx.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Store:  "ok",
			Signer: "ok",
		}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Store = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		if signer == nil {
			checks.Signer = "error: no session key loaded"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
