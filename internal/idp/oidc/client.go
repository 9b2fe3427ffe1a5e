// Package oidc implements the idp.Provider contract against a standard
// OAuth2/OIDC authority using the authorization-code flow with PKCE for
// interactive login and the refresh-token grant for silent acquisition.
package oidc

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"assetgate/internal/idp"
	"assetgate/internal/platform/config"
)

// pendingTTL bounds how long an issued authorization redirect stays
// redeemable. Abandoned redirects are pruned lazily.
const pendingTTL = 10 * time.Minute

type pendingAuth struct {
	verifier  string
	nonce     string
	scopes    []string
	attempt   uint64
	createdAt time.Time
}

// Client is the concrete OIDC identity provider adapter.
type Client struct {
	cfg  config.IdP
	http *http.Client
	log  *slog.Logger

	mu            sync.Mutex
	pending       map[string]pendingAuth
	accounts      map[string]idp.Account
	refreshTokens map[string]string
	active        *idp.Account
	subscribers   map[int]func(idp.Event)
	nextSub       int

	now func() time.Time
}

// New creates an OIDC client. httpClient may be nil, in which case a client
// with a 15s timeout is used.
func New(cfg config.IdP, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		cfg:           cfg,
		http:          httpClient,
		log:           log,
		pending:       make(map[string]pendingAuth),
		accounts:      make(map[string]idp.Account),
		refreshTokens: make(map[string]string),
		subscribers:   make(map[int]func(idp.Event)),
		now:           time.Now,
	}
}

// Accounts returns the accounts cached from prior logins.
func (c *Client) Accounts(ctx context.Context) []idp.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]idp.Account, 0, len(c.accounts))
	for _, a := range c.accounts {
		out = append(out, a)
	}
	return out
}

// SetActiveAccount selects the account used for silent acquisition.
func (c *Client) SetActiveAccount(account *idp.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = account
}

// LoginURL builds an authorization redirect and records the PKCE state needed
// to redeem it.
func (c *Client) LoginURL(ctx context.Context, req idp.LoginRequest) (string, error) {
	state := uuid.NewString()
	nonce := uuid.NewString()
	verifier, challenge, err := newPKCE()
	if err != nil {
		return "", fmt.Errorf("generate pkce verifier: %w", err)
	}

	scopes := withOpenIDScopes(req.Scopes)

	c.mu.Lock()
	c.prunePendingLocked()
	c.pending[state] = pendingAuth{
		verifier:  verifier,
		nonce:     nonce,
		scopes:    scopes,
		attempt:   req.Attempt,
		createdAt: c.now(),
	}
	c.mu.Unlock()

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("scope", strings.Join(scopes, " "))
	q.Set("state", state)
	q.Set("nonce", nonce)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "S256")
	if req.LoginHint != "" {
		q.Set("login_hint", req.LoginHint)
	}
	return c.cfg.AuthorizeEndpoint + "?" + q.Encode(), nil
}

// HandleRedirect completes a pending redirect flow. Returns (nil, nil) when
// the query carries no redirect response.
func (c *Client) HandleRedirect(ctx context.Context, query url.Values) (*idp.Account, error) {
	if query.Get("code") == "" && query.Get("error") == "" {
		return nil, nil
	}

	// The attempt travels with the pending state, so every event of this flow
	// is attributable to the login that issued the redirect.
	c.mu.Lock()
	attempt := c.pending[query.Get("state")].attempt
	c.mu.Unlock()

	c.emit(idp.Event{Type: idp.EventRedirectStart, Attempt: attempt})
	account, err := c.completeRedirect(ctx, query)
	c.emit(idp.Event{Type: idp.EventRedirectEnd, Attempt: attempt})

	if err != nil {
		c.emit(idp.Event{Type: idp.EventLoginFailure, Err: err, Attempt: attempt})
		return nil, err
	}
	c.emit(idp.Event{Type: idp.EventLoginSuccess, Account: account, Attempt: attempt})
	return account, nil
}

func (c *Client) completeRedirect(ctx context.Context, query url.Values) (*idp.Account, error) {
	state := query.Get("state")

	c.mu.Lock()
	pend, ok := c.pending[state]
	delete(c.pending, state)
	c.mu.Unlock()

	if errCode := query.Get("error"); errCode != "" {
		return nil, &idp.AuthError{Code: errCode, Description: query.Get("error_description")}
	}
	if !ok || c.now().Sub(pend.createdAt) > pendingTTL {
		return nil, &idp.AuthError{Code: "invalid_state", Description: "unknown or expired state parameter"}
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", query.Get("code"))
	form.Set("redirect_uri", c.cfg.RedirectURL)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("code_verifier", pend.verifier)

	resp, err := c.postToken(ctx, form)
	if err != nil {
		return nil, err
	}

	account, nonce, err := accountFromIDToken(resp.IDToken)
	if err != nil {
		return nil, &idp.AuthError{Code: "invalid_id_token", Description: err.Error()}
	}
	if nonce != pend.nonce {
		return nil, &idp.AuthError{Code: "invalid_nonce", Description: "id token nonce does not match login request"}
	}

	c.mu.Lock()
	c.accounts[account.ID] = *account
	if resp.RefreshToken != "" {
		c.refreshTokens[account.ID] = resp.RefreshToken
	}
	c.active = account
	c.mu.Unlock()

	c.log.InfoContext(ctx, "redirect login completed", "account_id", account.ID)
	return account, nil
}

// AcquireTokenSilent obtains a token via the refresh-token grant. Returns an
// interaction-required error when no usable refresh token exists for the
// account or the provider rejects the grant as no longer valid.
func (c *Client) AcquireTokenSilent(ctx context.Context, req idp.TokenRequest) (*idp.Token, error) {
	c.mu.Lock()
	refreshToken := c.refreshTokens[req.Account.ID]
	c.mu.Unlock()

	if refreshToken == "" {
		return nil, &idp.InteractionRequiredError{
			Reason: "no refresh token cached for account",
			Kind:   idp.InteractionRedirect,
		}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("scope", strings.Join(req.Scopes, " "))

	resp, err := c.postToken(ctx, form)
	if err != nil {
		if authErr, ok := err.(*idp.AuthError); ok && isInteractionCode(authErr.Code) {
			return nil, &idp.InteractionRequiredError{Reason: authErr.Error(), Kind: idp.InteractionRedirect}
		}
		return nil, err
	}

	c.mu.Lock()
	if resp.RefreshToken != "" {
		// Provider rotated the refresh token; the old one may be single-use.
		c.refreshTokens[req.Account.ID] = resp.RefreshToken
	}
	c.mu.Unlock()

	token := &idp.Token{
		AccessToken: resp.AccessToken,
		Expiry:      c.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		Scopes:      req.Scopes,
	}
	c.emit(idp.Event{Type: idp.EventTokenAcquired, Account: &req.Account})
	return token, nil
}

// AcquireTokenInteractive cannot complete inline in a gateway; it returns a
// redirect challenge carrying the authorization URL for the requested scopes.
func (c *Client) AcquireTokenInteractive(ctx context.Context, req idp.TokenRequest) (*idp.Token, error) {
	authURL, err := c.LoginURL(ctx, idp.LoginRequest{Scopes: req.Scopes, LoginHint: req.Account.Username})
	if err != nil {
		return nil, err
	}
	return nil, &idp.RedirectChallengeError{AuthURL: authURL, Kind: idp.InteractionRedirect}
}

// LogoutURL clears provider-local state for the account and returns the
// end-session redirect. Emits a logout-success event: once local credentials
// are gone the sign-out is effective regardless of whether the user agent
// completes the provider redirect.
func (c *Client) LogoutURL(account *idp.Account) string {
	c.mu.Lock()
	if account != nil {
		delete(c.accounts, account.ID)
		delete(c.refreshTokens, account.ID)
	}
	c.active = nil
	c.mu.Unlock()

	c.emit(idp.Event{Type: idp.EventLogoutSuccess, Account: account})

	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	return c.cfg.EndSessionEndpoint + "?" + q.Encode()
}

// Subscribe registers a lifecycle event callback.
func (c *Client) Subscribe(fn func(idp.Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// emit snapshots subscribers under the lock and invokes them outside it, so a
// subscriber may call back into the client.
func (c *Client) emit(ev idp.Event) {
	c.mu.Lock()
	fns := make([]func(idp.Event), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) postToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var oauthErr tokenErrorResponse
		if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
			return nil, &idp.AuthError{Code: oauthErr.Error, Description: oauthErr.ErrorDescription}
		}
		return nil, &idp.AuthError{Code: fmt.Sprintf("http_%d", resp.StatusCode)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, &idp.AuthError{Code: "invalid_response", Description: "token response missing access_token"}
	}
	return &tr, nil
}

func (c *Client) prunePendingLocked() {
	now := c.now()
	for state, pend := range c.pending {
		if now.Sub(pend.createdAt) > pendingTTL {
			delete(c.pending, state)
		}
	}
}

// isInteractionCode reports whether a provider error code means the user must
// re-authenticate rather than the request being broken.
func isInteractionCode(code string) bool {
	switch code {
	case "invalid_grant", "interaction_required", "login_required", "consent_required":
		return true
	}
	return false
}

func withOpenIDScopes(scopes []string) []string {
	out := []string{"openid", "profile"}
	for _, s := range scopes {
		if s != "openid" && s != "profile" {
			out = append(out, s)
		}
	}
	return out
}

func newPKCE() (verifier, challenge string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	verifier = base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge, nil
}
