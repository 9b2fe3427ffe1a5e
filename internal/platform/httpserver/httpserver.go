package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with defaults suited to a gateway that holds
// long-ish outbound calls (token endpoint, resource backends) per request.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
