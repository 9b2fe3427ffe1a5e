// Package httptransport is the browser-facing surface of the gateway. It
// delegates to the session manager, authorization gate and resource clients
// without embedding their logic.
package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httperrors "assetgate/pkg/http-errors"
)

// NewRouter wires all public endpoints.
func NewRouter(auth *AuthHandler, proxy *ProxyHandler, health http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.handleLogin)
		r.Get("/callback", auth.handleCallback)
		r.Post("/logout", auth.handleLogout)
		r.Get("/session", auth.handleSession)
	})

	r.Route("/api/{resource}", func(r chi.Router) {
		r.Use(proxy.guard)
		r.HandleFunc("/*", proxy.handleForward)
	})

	return r
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError centralizes domain error translation so every handler speaks the
// same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	he := httperrors.FromDomain(err)
	writeJSON(w, he.Code.Status(), errorEnvelope{Error: string(he.Code), Message: he.Message})
}
