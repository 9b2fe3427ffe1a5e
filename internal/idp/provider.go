// Package idp defines the identity provider contract the rest of the gateway
// depends on. The concrete OIDC implementation lives in idp/oidc; tests
// substitute the mock in idp/mocks.
package idp

import (
	"context"
	"net/url"
	"time"
)

// Account is the identity record obtained from the provider after a
// successful authentication. Immutable once obtained for a given session;
// replaced wholesale on re-login.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Token is an access token scoped to one backend resource.
type Token struct {
	AccessToken string
	Expiry      time.Time
	Scopes      []string
}

// Valid reports whether the token is usable at the given instant, with a
// safety skew so a token is never attached moments before it expires.
func (t *Token) Valid(now time.Time, skew time.Duration) bool {
	return t != nil && t.AccessToken != "" && now.Add(skew).Before(t.Expiry)
}

// TokenRequest asks for an access token carrying Scopes on behalf of Account.
type TokenRequest struct {
	Scopes  []string
	Account Account
}

// LoginRequest starts an interactive redirect login.
type LoginRequest struct {
	Scopes []string
	// LoginHint pre-fills the provider's account picker when re-authenticating.
	LoginHint string
	// Attempt correlates the events of this login with the attempt that issued
	// it. The provider carries it on the pending redirect state and stamps it
	// onto every event of the flow, so a late callback from an abandoned
	// attempt can be told apart from the live one.
	Attempt uint64
}

// EventType enumerates the provider lifecycle events the session state
// machine folds over.
type EventType string

const (
	EventRedirectStart EventType = "redirect_start"
	EventRedirectEnd   EventType = "redirect_end"
	EventLoginSuccess  EventType = "login_success"
	EventLoginFailure  EventType = "login_failure"
	EventLogoutSuccess EventType = "logout_success"
	EventTokenAcquired EventType = "token_acquired"
)

// Event is one provider lifecycle notification. Login-flow events carry the
// Attempt of the LoginRequest that started the flow; zero means the event is
// not bound to a managed attempt.
type Event struct {
	Type    EventType
	Account *Account
	Err     error
	Attempt uint64
}

// Provider is the identity provider surface the gateway consumes. A single
// subscription is registered at session-manager construction; everything else
// is request/response.
type Provider interface {
	// Accounts returns the accounts the provider has cached locally.
	Accounts(ctx context.Context) []Account

	// SetActiveAccount selects the account used for silent acquisition.
	// Passing nil clears the selection.
	SetActiveAccount(account *Account)

	// HandleRedirect completes a pending redirect flow from the callback
	// query parameters. Returns (nil, nil) when no redirect response is
	// pending in the query.
	HandleRedirect(ctx context.Context, query url.Values) (*Account, error)

	// AcquireTokenSilent obtains a token without user interaction. Returns an
	// error satisfying IsInteractionRequired when the cached session cannot
	// satisfy the request.
	AcquireTokenSilent(ctx context.Context, req TokenRequest) (*Token, error)

	// AcquireTokenInteractive obtains a token via user interaction. The OIDC
	// implementation cannot complete this inline and returns a
	// RedirectChallengeError carrying the authorization URL; test doubles may
	// resolve it directly.
	AcquireTokenInteractive(ctx context.Context, req TokenRequest) (*Token, error)

	// LoginURL builds the authorization redirect for an interactive login.
	LoginURL(ctx context.Context, req LoginRequest) (string, error)

	// LogoutURL builds the provider end-session redirect for the account.
	LogoutURL(account *Account) string

	// Subscribe registers a lifecycle event callback and returns its
	// unsubscribe function.
	Subscribe(fn func(Event)) (unsubscribe func())
}
