// Package session owns the operator session lifecycle: initialization from
// persisted state, interactive login, logout, and the status the console's
// session endpoint reports. Status changes are driven exclusively by provider
// events folded through Reduce.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"assetgate/internal/authz"
	"assetgate/internal/idp"
	"assetgate/internal/platform/metrics"
	"assetgate/internal/session/store"
	dErrors "assetgate/pkg/domain-errors"
	audit "assetgate/pkg/platform/audit"
	"assetgate/pkg/platform/sentinel"
)

// sideEffectTimeout bounds the background work triggered by provider events.
const sideEffectTimeout = 10 * time.Second

// TokenCache is the slice of the token broker the manager needs on logout.
type TokenCache interface {
	Clear()
}

// Gate is the slice of the authorization gate the manager drives.
type Gate interface {
	Recompute(ctx context.Context) authz.Flags
	Invalidate()
}

// AuditEmitter records lifecycle events.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config holds the session timing knobs.
type Config struct {
	// SessionTTL bounds the persisted session record.
	SessionTTL time.Duration

	// LoginWatchdog fails a login attempt that receives no terminal event.
	LoginWatchdog time.Duration

	// InteractionCleanup unconditionally clears the interaction flag so a
	// wedged login can never block future attempts.
	InteractionCleanup time.Duration
}

// Deps are the manager's collaborators. Tokens, Gate, Audit and Metrics may
// be nil.
type Deps struct {
	Provider idp.Provider
	Sessions store.Store
	Tokens   TokenCache
	Gate     Gate
	Audit    AuditEmitter
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Snapshot is the externally visible session state.
type Snapshot struct {
	Status          Status
	IsInitialized   bool
	IsAuthenticated bool
	Account         *idp.Account
	Err             error
}

// Manager is the session state machine. One instance serves the whole
// gateway; it registers a single provider subscription at construction.
//
// Lock ordering: provider methods that emit events synchronously are never
// called while holding mu, since the event callback takes mu itself.
type Manager struct {
	provider idp.Provider
	sessions store.Store
	tokens   TokenCache
	gate     Gate
	audit    AuditEmitter
	metrics  *metrics.Metrics
	log      *slog.Logger
	cfg      Config
	now      func() time.Time

	unsubscribe func()

	mu          sync.Mutex
	status      Status
	account     *idp.Account
	lastErr     error
	interacting bool
	generation  uint64
	watchdog    *time.Timer
	cleanup     *time.Timer
}

// NewManager wires the manager and subscribes to provider events. Call Close
// to release the subscription.
func NewManager(deps Deps, cfg Config) *Manager {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		provider: deps.Provider,
		sessions: deps.Sessions,
		tokens:   deps.Tokens,
		gate:     deps.Gate,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
		status:   StatusUninitialized,
	}
	m.unsubscribe = deps.Provider.Subscribe(m.onEvent)
	return m
}

// Close releases the provider subscription and stops pending timers.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.mu.Lock()
	m.stopTimersLocked()
	m.mu.Unlock()
}

// Initialize restores the session: a persisted record whose account the
// provider still knows resumes as authenticated, any cached provider account
// does the same, otherwise the session is anonymous. Initialize is a no-op
// after the first call.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.status != StatusUninitialized {
		m.mu.Unlock()
		return nil
	}
	m.setStatusLocked(StatusInitializing)
	m.mu.Unlock()

	record, err := m.sessions.Load(ctx)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) && !errors.Is(err, sentinel.ErrExpired) {
		m.log.WarnContext(ctx, "session restore failed", "error", err)
	}

	accounts := m.provider.Accounts(ctx)
	resumed := pickAccount(record, accounts)
	if resumed == nil {
		m.mu.Lock()
		m.setStatusLocked(StatusAnonymous)
		m.mu.Unlock()
		return nil
	}

	m.provider.SetActiveAccount(resumed)
	m.mu.Lock()
	m.account = resumed
	m.setStatusLocked(StatusAuthenticated)
	m.mu.Unlock()

	if m.gate != nil {
		m.gate.Recompute(ctx)
	}
	m.log.InfoContext(ctx, "session resumed", "account_id", resumed.ID)
	return nil
}

// pickAccount chooses the account to resume: the persisted one when the
// provider still caches it, else the provider's first cached account.
func pickAccount(record *store.Record, accounts []idp.Account) *idp.Account {
	if record != nil {
		for _, a := range accounts {
			if a.ID == record.Account.ID {
				return &a
			}
		}
	}
	if len(accounts) > 0 {
		return &accounts[0]
	}
	return nil
}

// Login starts an interactive login and returns the authorization URL the
// browser must follow. A login already in progress makes Login a no-op
// returning an empty URL, so double-clicks and racing tabs collapse into one
// attempt.
func (m *Manager) Login(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.interacting {
		m.mu.Unlock()
		return "", nil
	}
	m.interacting = true
	m.generation++
	gen := m.generation
	m.lastErr = nil
	prior := m.account
	m.setStatusLocked(StatusAuthenticating)
	m.armTimersLocked(gen)
	m.mu.Unlock()

	req := idp.LoginRequest{Attempt: gen}
	if prior != nil {
		req.LoginHint = prior.Username
	}
	authURL, err := m.provider.LoginURL(ctx, req)
	if err != nil {
		m.mu.Lock()
		if m.generation == gen {
			m.lastErr = err
			m.interacting = false
			m.stopTimersLocked()
			m.setStatusLocked(StatusFailed)
		}
		m.mu.Unlock()
		m.countLogin("failed")
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "login could not be started")
	}

	m.emitAudit(ctx, audit.Event{Action: audit.ActionLoginStarted, ActorID: actorID(prior)})
	return authURL, nil
}

// CompleteRedirect finishes the login from the provider's callback query.
// Results belonging to a superseded attempt are discarded: the success event
// of such a flow is dropped by onEvent, so the account it carries never
// becomes the session account, and only an accepted account is persisted.
// Returns (nil, nil) when the query carries no pending redirect response.
func (m *Manager) CompleteRedirect(ctx context.Context, query url.Values) (*idp.Account, error) {
	account, err := m.provider.HandleRedirect(ctx, query)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "login failed")
	}
	if account == nil {
		return nil, nil
	}

	m.mu.Lock()
	accepted := m.status == StatusAuthenticated && m.account != nil && m.account.ID == account.ID
	m.mu.Unlock()
	if !accepted {
		m.log.InfoContext(ctx, "discarding redirect result from superseded login attempt",
			"account_id", account.ID)
		return nil, nil
	}

	if persistErr := m.persist(ctx, *account); persistErr != nil {
		m.log.WarnContext(ctx, "session persistence failed", "error", persistErr)
	}
	return account, nil
}

// Logout ends the session and returns the provider end-session URL. Logout
// during an in-flight login is rejected: tearing down state the pending
// attempt is about to replace would leave the two racing.
func (m *Manager) Logout(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.interacting {
		m.mu.Unlock()
		return "", dErrors.New(dErrors.CodeConflict, "operation not permitted while a login is in progress")
	}
	account := m.account
	m.mu.Unlock()

	logoutURL := m.provider.LogoutURL(account)

	if err := m.sessions.Delete(ctx); err != nil {
		m.log.WarnContext(ctx, "session record delete failed", "error", err)
	}
	return logoutURL, nil
}

// Snapshot returns the current session state for the session endpoint.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Status:          m.status,
		IsInitialized:   m.status != StatusUninitialized && m.status != StatusInitializing,
		IsAuthenticated: m.status == StatusAuthenticated,
		Account:         m.account,
		Err:             m.lastErr,
	}
}

// ActiveAccount returns the authenticated account, nil when anonymous. The
// token broker uses this as its account source.
func (m *Manager) ActiveAccount() *idp.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusAuthenticated {
		return nil
	}
	return m.account
}

// onEvent folds a provider event into the status and runs its side effects.
// Login-flow events are applied only when they belong to the live attempt: a
// late callback from a timed-out or superseded login must neither change the
// session account nor wipe the live attempt's interaction flag and timers.
func (m *Manager) onEvent(event idp.Event) {
	if event.Type == idp.EventLogoutSuccess {
		// Derived state goes first: a session snapshot must never pair an
		// anonymous status with flags computed for the departed account.
		if m.tokens != nil {
			m.tokens.Clear()
		}
		if m.gate != nil {
			m.gate.Invalidate()
		}
	}

	m.mu.Lock()
	if isLoginFlowEvent(event.Type) && (!m.interacting || event.Attempt != m.generation) {
		m.mu.Unlock()
		m.log.Info("discarding provider event from superseded login attempt",
			"type", string(event.Type), "attempt", event.Attempt)
		return
	}
	next := Reduce(m.status, event)

	switch event.Type {
	case idp.EventLoginSuccess:
		m.account = event.Account
		m.lastErr = nil
		m.interacting = false
		m.stopTimersLocked()
	case idp.EventLoginFailure:
		m.lastErr = event.Err
		m.interacting = false
		m.stopTimersLocked()
	case idp.EventLogoutSuccess:
		m.account = nil
		m.lastErr = nil
	}
	m.setStatusLocked(next)
	m.mu.Unlock()

	switch event.Type {
	case idp.EventLoginSuccess:
		m.afterLogin(event.Account)
	case idp.EventLoginFailure:
		m.countLogin("failed")
		m.emitAudit(context.Background(), audit.Event{
			Action:  audit.ActionLoginFailed,
			ActorID: actorID(event.Account),
			Detail:  errDetail(event.Err),
		})
	case idp.EventLogoutSuccess:
		m.afterLogout(event.Account)
	case idp.EventTokenAcquired:
		// Off the event goroutine: the event is emitted from inside a token
		// acquisition and the recompute acquires tokens itself.
		go m.afterTokenRefresh(event.Account)
	}
}

// isLoginFlowEvent reports whether the event type belongs to an interactive
// login flow and so carries an attempt binding.
func isLoginFlowEvent(t idp.EventType) bool {
	switch t {
	case idp.EventRedirectStart, idp.EventRedirectEnd, idp.EventLoginSuccess, idp.EventLoginFailure:
		return true
	}
	return false
}

// afterLogin runs the post-authentication side effects: metrics, audit, and
// the authorization recompute. A failed recompute leaves the session
// authenticated with flags down, it never fails the login.
func (m *Manager) afterLogin(account *idp.Account) {
	m.countLogin("succeeded")

	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	m.emitAudit(ctx, audit.Event{
		Action:   audit.ActionLoginSucceeded,
		ActorID:  actorID(account),
		Username: username(account),
	})
	if m.gate != nil {
		flags := m.gate.Recompute(ctx)
		m.emitAudit(ctx, audit.Event{
			Action:  audit.ActionAuthzRecomputed,
			ActorID: actorID(account),
			Detail:  authzDetail(flags),
		})
	}
}

// afterTokenRefresh re-derives the authorization flags after a silent token
// acquisition, so a permission change at the backend is picked up without a
// re-login. Skipped outside the authenticated state.
func (m *Manager) afterTokenRefresh(account *idp.Account) {
	m.mu.Lock()
	authenticated := m.status == StatusAuthenticated
	m.mu.Unlock()
	if !authenticated || m.gate == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	flags := m.gate.Recompute(ctx)
	m.emitAudit(ctx, audit.Event{
		Action:  audit.ActionAuthzRecomputed,
		ActorID: actorID(account),
		Detail:  authzDetail(flags),
	})
}

// afterLogout clears what remains for the departed account; token cache and
// gate flags were already cleared before the status flip.
func (m *Manager) afterLogout(account *idp.Account) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := m.sessions.Delete(ctx); err != nil {
		m.log.Warn("session record delete failed", "error", err)
	}
	m.emitAudit(ctx, audit.Event{
		Action:  audit.ActionLogoutCompleted,
		ActorID: actorID(account),
	})
}

// persist writes the session record with the configured TTL.
func (m *Manager) persist(ctx context.Context, account idp.Account) error {
	now := m.now()
	return m.sessions.Save(ctx, store.Record{
		ID:        uuid.New(),
		Account:   account,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.SessionTTL),
	})
}

// armTimersLocked starts the login watchdog and the unconditional interaction
// cleanup for the given attempt generation. Caller holds mu.
func (m *Manager) armTimersLocked(gen uint64) {
	m.stopTimersLocked()
	if m.cfg.LoginWatchdog > 0 {
		m.watchdog = time.AfterFunc(m.cfg.LoginWatchdog, func() { m.onWatchdog(gen) })
	}
	if m.cfg.InteractionCleanup > 0 {
		m.cleanup = time.AfterFunc(m.cfg.InteractionCleanup, func() { m.onCleanup(gen) })
	}
}

func (m *Manager) stopTimersLocked() {
	if m.watchdog != nil {
		m.watchdog.Stop()
		m.watchdog = nil
	}
	if m.cleanup != nil {
		m.cleanup.Stop()
		m.cleanup = nil
	}
}

// onWatchdog fails a login attempt that never received a terminal event.
func (m *Manager) onWatchdog(gen uint64) {
	m.mu.Lock()
	if m.generation != gen || m.status != StatusAuthenticating {
		m.mu.Unlock()
		return
	}
	m.lastErr = dErrors.New(dErrors.CodeTimeout, "login timed out")
	m.interacting = false
	m.setStatusLocked(StatusFailed)
	m.mu.Unlock()

	m.log.Warn("login watchdog fired", "generation", gen)
	m.countLogin("timeout")

	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	m.emitAudit(ctx, audit.Event{Action: audit.ActionLoginTimeout})
}

// onCleanup clears the interaction flag regardless of session state. The
// watchdog normally gets there first; this is the backstop when it was
// stopped or never armed.
func (m *Manager) onCleanup(gen uint64) {
	m.mu.Lock()
	if m.generation == gen && m.interacting {
		m.interacting = false
		m.log.Warn("interaction flag cleared by cleanup timer", "generation", gen)
	}
	m.mu.Unlock()
}

// setStatusLocked applies a status change and counts the transition. Caller
// holds mu.
func (m *Manager) setStatusLocked(next Status) {
	if m.status == next {
		return
	}
	m.status = next
	if m.metrics != nil {
		m.metrics.SessionTransitions.WithLabelValues(string(next)).Inc()
	}
}

func (m *Manager) countLogin(outcome string) {
	if m.metrics != nil {
		m.metrics.Logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Manager) emitAudit(ctx context.Context, event audit.Event) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Emit(ctx, event); err != nil {
		m.log.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}

func actorID(account *idp.Account) string {
	if account == nil {
		return ""
	}
	return account.ID
}

func username(account *idp.Account) string {
	if account == nil {
		return ""
	}
	return account.Username
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func authzDetail(flags authz.Flags) string {
	switch {
	case flags.IsAdmin:
		return "authorized admin"
	case flags.IsAuthorized:
		return "authorized"
	default:
		return "not authorized"
	}
}
