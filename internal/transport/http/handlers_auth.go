package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"assetgate/internal/authz"
	"assetgate/internal/idp"
	"assetgate/internal/session"
	httperrors "assetgate/pkg/http-errors"
)

// sessionCookie marks the browser that completed a login. The cookie is an
// opaque handle; session state lives server-side. No MaxAge: the session is
// browser-session scoped by policy.
const sessionCookie = "asg_session"

// SessionService is the session manager surface the handlers need.
type SessionService interface {
	Login(ctx context.Context) (string, error)
	CompleteRedirect(ctx context.Context, query url.Values) (*idp.Account, error)
	Logout(ctx context.Context) (string, error)
	Snapshot() session.Snapshot
}

// FlagSource exposes the authorization flags for the session endpoint.
type FlagSource interface {
	Flags() authz.Flags
	Err() error
}

// AuthHandler serves the login, callback, logout and session endpoints.
type AuthHandler struct {
	sessions SessionService
	flags    FlagSource
	log      *slog.Logger
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(sessions SessionService, flags FlagSource, log *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, flags: flags, log: log}
}

// handleLogin starts an interactive login by redirecting the browser to the
// provider. A login from inside an embedded frame is rejected: the provider
// forbids framing its pages, so the flow must run as a top-level navigation.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Sec-Fetch-Dest") == "iframe" {
		writeError(w, httperrors.New(httperrors.CodeForbidden,
			"login cannot run inside an embedded frame; retry as a top-level navigation"))
		return
	}

	authURL, err := h.sessions.Login(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if authURL == "" {
		// A login is already in flight; this request collapses into it.
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "login_pending"})
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback completes the redirect flow from the provider.
func (h *AuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	account, err := h.sessions.CompleteRedirect(r.Context(), r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	if account == nil {
		// Nothing pending: a stray or duplicate callback visit.
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    uuid.NewString(),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	h.log.InfoContext(r.Context(), "login completed", "account_id", account.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout ends the session and hands the browser the provider's
// end-session URL.
func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	logoutURL, err := h.sessions.Logout(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"logoutUrl": logoutURL})
}

type sessionResponse struct {
	Status          string       `json:"status"`
	IsInitialized   bool         `json:"isInitialized"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	IsAuthorized    bool         `json:"isAuthorized"`
	IsAdmin         bool         `json:"isAdmin"`
	Account         *idp.Account `json:"account,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// handleSession reports the session and authorization state the console polls.
func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	snap := h.sessions.Snapshot()
	flags := h.flags.Flags()

	resp := sessionResponse{
		Status:          string(snap.Status),
		IsInitialized:   snap.IsInitialized,
		IsAuthenticated: snap.IsAuthenticated,
		IsAuthorized:    flags.IsAuthorized,
		IsAdmin:         flags.IsAdmin,
		Account:         snap.Account,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	} else if err := h.flags.Err(); err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
