package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetgate/internal/apiclient"
	httperrors "assetgate/pkg/http-errors"
)

// maxProxyBody bounds request bodies accepted for forwarding.
const maxProxyBody = 8 << 20

// Forwarder is the resource client surface the proxy needs.
type Forwarder interface {
	Forward(ctx context.Context, method, path string, body []byte, contentType string) (int, []byte, http.Header, error)
}

// ProxyHandler forwards console requests to the protected backend resources,
// one named client per resource.
type ProxyHandler struct {
	sessions SessionService
	flags    FlagSource
	clients  map[string]Forwarder
	log      *slog.Logger
}

// NewProxyHandler creates the proxy handler.
func NewProxyHandler(sessions SessionService, flags FlagSource, clients map[string]Forwarder, log *slog.Logger) *ProxyHandler {
	return &ProxyHandler{sessions: sessions, flags: flags, clients: clients, log: log}
}

// guard admits only authenticated, authorized sessions to the proxy routes.
func (h *ProxyHandler) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.sessions.Snapshot().IsAuthenticated {
			writeError(w, httperrors.New(httperrors.CodeUnauthorized, "not signed in"))
			return
		}
		if !h.flags.Flags().IsAuthorized {
			writeError(w, httperrors.New(httperrors.CodeForbidden, "account is not authorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleForward relays the request to the named resource. Error responses
// arrive pre-normalized from the client and are passed through with their
// original status.
func (h *ProxyHandler) handleForward(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "resource")
	client, ok := h.clients[name]
	if !ok {
		writeError(w, httperrors.New(httperrors.CodeNotFound, "unknown resource"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody))
	if err != nil {
		writeError(w, httperrors.New(httperrors.CodeInvalidInput, "unreadable request body"))
		return
	}
	if len(body) == 0 {
		body = nil
	}

	path := "/" + chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	status, payload, header, err := client.Forward(r.Context(), r.Method, path, body, r.Header.Get("Content-Type"))
	if err != nil {
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) {
			writeJSON(w, apiErr.Status, apiErr)
			return
		}
		writeError(w, err)
		return
	}

	if ct := header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
