// Package http serves the operational endpoints of the auth core. The
// credential and MFA operations themselves are called in-process by the
// storefront and are not exposed here.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/arvicollection/authcore/internal/auth/store"
	"github.com/arvicollection/authcore/pkg/jwtx"
	"github.com/arvicollection/authcore/pkg/slogx"

	"github.com/gorilla/handlers"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux *http.ServeMux

	store        store.Store
	signer       *jwtx.Signer
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	handler http.Handler
}

func NewRouter(st store.Store, signer *jwtx.Signer, buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		store:        st,
		signer:       signer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}
	r.registerSystem()

	// Outermost first: client address, request log, panic recovery.
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
		handlers.PrintRecoveryStack(false),
	)
	r.handler = handlers.ProxyHeaders(slogx.HTTPMiddleware(logger)(recovery(r.Mux)))
	return r
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer))
}
