// Package token implements the broker that acquires and caches access tokens
// per protected-resource scope set. Concurrent requests for the same scope
// set share one in-flight acquisition; silent acquisition falls back to
// interactive when the provider demands it.
package token

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"assetgate/internal/idp"
	"assetgate/internal/platform/metrics"
	dErrors "assetgate/pkg/domain-errors"
)

// defaultExpirySkew is the safety margin before expiry at which a cached
// token stops being served.
const defaultExpirySkew = 30 * time.Second

// AccountFunc supplies the account tokens are acquired for, or nil when no
// session exists.
type AccountFunc func() *idp.Account

// Broker acquires and caches tokens per scope-set key.
//
// The resolved-token cache and the in-flight registry are deliberately kept
// separate: the cache holds only successfully resolved tokens, while the
// singleflight group tracks pending acquisitions and forgets them on
// completion whatever the outcome, so no key can be stuck in-flight after a
// failure.
type Broker struct {
	provider idp.Provider
	account  AccountFunc
	log      *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	skew     time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cache  map[string]*idp.Token
	flight singleflight.Group
}

// Option configures a Broker.
type Option func(*Broker)

// WithExpirySkew overrides the margin before expiry at which cached tokens
// are considered stale.
func WithExpirySkew(skew time.Duration) Option {
	return func(b *Broker) { b.skew = skew }
}

// NewBroker creates a token broker. metrics may be nil.
func NewBroker(provider idp.Provider, account AccountFunc, log *slog.Logger, m *metrics.Metrics, opts ...Option) *Broker {
	b := &Broker{
		provider: provider,
		account:  account,
		log:      log,
		metrics:  m,
		tracer:   otel.Tracer("assetgate/internal/token"),
		skew:     defaultExpirySkew,
		now:      time.Now,
		cache:    make(map[string]*idp.Token),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Acquire returns a token carrying the requested scopes, serving from cache
// when a non-expired token exists.
func (b *Broker) Acquire(ctx context.Context, scopes []string) (*idp.Token, error) {
	return b.acquire(ctx, scopes, false)
}

// ForceRefresh acquires a fresh token, bypassing the resolved cache but not
// the single-flight guard: concurrent refreshes for the same scopes still
// collapse into one provider call.
func (b *Broker) ForceRefresh(ctx context.Context, scopes []string) (*idp.Token, error) {
	return b.acquire(ctx, scopes, true)
}

// Clear drops all cached tokens. Called on logout so no token outlives the
// account it was issued for.
func (b *Broker) Clear() {
	b.mu.Lock()
	b.cache = make(map[string]*idp.Token)
	b.mu.Unlock()
}

func (b *Broker) acquire(ctx context.Context, scopes []string, force bool) (*idp.Token, error) {
	key := ScopeKey(scopes)

	if !force {
		if tok := b.cached(key); tok != nil {
			b.countAcquisition("cached")
			return tok, nil
		}
	}

	ctx, span := b.tracer.Start(ctx, "token.acquire", trace.WithAttributes(
		attribute.String("token.scope_key", key),
		attribute.Bool("token.force", force),
	))
	defer span.End()

	v, err, shared := b.flight.Do(key, func() (any, error) {
		// Re-check under the flight: a caller that raced the winner may have
		// populated the cache between our miss and this closure running.
		if !force {
			if tok := b.cached(key); tok != nil {
				return tok, nil
			}
		}

		account := b.account()
		if account == nil {
			b.countAcquisition("failed")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token acquisition failed: no signed-in account")
		}

		req := idp.TokenRequest{Scopes: scopes, Account: *account}
		tok, err := b.provider.AcquireTokenSilent(ctx, req)
		outcome := "silent"
		if idp.IsInteractionRequired(err) {
			b.log.InfoContext(ctx, "silent acquisition requires interaction, falling back",
				"scope_key", key, "reason", err.Error())
			tok, err = b.provider.AcquireTokenInteractive(ctx, req)
			outcome = "interactive"
		}
		if err != nil {
			b.countAcquisition("failed")
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token acquisition failed")
		}

		b.mu.Lock()
		b.cache[key] = tok
		b.mu.Unlock()

		b.countAcquisition(outcome)
		return tok, nil
	})

	if shared && b.metrics != nil {
		b.metrics.SingleFlightShared.Inc()
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v.(*idp.Token), nil
}

func (b *Broker) cached(key string) *idp.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tok, ok := b.cache[key]; ok && tok.Valid(b.now(), b.skew) {
		return tok
	}
	return nil
}

func (b *Broker) countAcquisition(outcome string) {
	if b.metrics != nil {
		b.metrics.TokenAcquisitions.WithLabelValues(outcome).Inc()
	}
}
