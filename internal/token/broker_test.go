package token

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"assetgate/internal/idp"
	"assetgate/internal/idp/mocks"
	dErrors "assetgate/pkg/domain-errors"
)

func testAccount() *idp.Account {
	return &idp.Account{ID: "user-1", Username: "ada@example.com"}
}

func newTestBroker(t *testing.T, opts ...Option) (*Broker, *mocks.MockProvider) {
	t.Helper()
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	broker := NewBroker(provider, testAccount, slog.New(slog.DiscardHandler), nil, opts...)
	return broker, provider
}

func validToken(scopes ...string) *idp.Token {
	return &idp.Token{
		AccessToken: "at-" + ScopeKey(scopes),
		Expiry:      time.Now().Add(time.Hour),
		Scopes:      scopes,
	}
}

func TestScopeKey(t *testing.T) {
	assert.Equal(t, ScopeKey([]string{"b", "a"}), ScopeKey([]string{"a", "b"}))
	assert.Equal(t, "a b", ScopeKey([]string{"b", "a", "b", " ", ""}))
	assert.Equal(t, "", ScopeKey(nil))
}

func TestAcquire_CachesResolvedToken(t *testing.T) {
	broker, provider := newTestBroker(t)
	scopes := []string{"core.read"}

	provider.EXPECT().
		AcquireTokenSilent(gomock.Any(), gomock.Any()).
		Return(validToken(scopes...), nil).
		Times(1)

	first, err := broker.Acquire(context.Background(), scopes)
	require.NoError(t, err)

	second, err := broker.Acquire(context.Background(), scopes)
	require.NoError(t, err)
	assert.Same(t, first, second, "second call must be served from cache")
}

func TestAcquire_ExpiredTokenIsRefetched(t *testing.T) {
	broker, provider := newTestBroker(t)
	scopes := []string{"core.read"}

	expired := &idp.Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Minute), Scopes: scopes}
	fresh := validToken(scopes...)
	gomock.InOrder(
		provider.EXPECT().AcquireTokenSilent(gomock.Any(), gomock.Any()).Return(expired, nil),
		provider.EXPECT().AcquireTokenSilent(gomock.Any(), gomock.Any()).Return(fresh, nil),
	)

	_, err := broker.Acquire(context.Background(), scopes)
	require.NoError(t, err)

	got, err := broker.Acquire(context.Background(), scopes)
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}

// TestAcquire_SingleFlight is the central correctness property: N concurrent
// callers requesting the same scopes produce exactly one provider request and
// all observe the same resolved token.
func TestAcquire_SingleFlight(t *testing.T) {
	broker, provider := newTestBroker(t)
	scopes := []string{"asset.read", "asset.write"}

	const callers = 8
	started := make(chan struct{})
	release := make(chan struct{})
	tok := validToken(scopes...)

	provider.EXPECT().
		AcquireTokenSilent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, idp.TokenRequest) (*idp.Token, error) {
			close(started)
			<-release
			return tok, nil
		}).
		Times(1)

	results := make([]*idp.Token, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = broker.Acquire(context.Background(), scopes)
		}()
	}

	// Hold the provider call open until every caller has had a chance to
	// join the flight, then let them all resolve together.
	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, tok, results[i])
	}
}

func TestAcquire_SharedRejection(t *testing.T) {
	broker, provider := newTestBroker(t)
	scopes := []string{"core.read"}

	started := make(chan struct{})
	release := make(chan struct{})
	provider.EXPECT().
		AcquireTokenSilent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, idp.TokenRequest) (*idp.Token, error) {
			close(started)
			<-release
			return nil, &idp.AuthError{Code: "server_error"}
		}).
		Times(1)

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = broker.Acquire(context.Background(), scopes)
		}()
	}
	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range callers {
		assert.True(t, dErrors.HasCode(errs[i], dErrors.CodeUnauthorized))
	}
}

func TestAcquire_DistinctScopeSets(t *testing.T) {
	broker, provider := newTestBroker(t)

	scopeSets := [][]string{
		{"asset.read"},
		{"document.read"},
		{"admin.write"},
	}
	for _, scopes := range scopeSets {
		provider.EXPECT().
			AcquireTokenSilent(gomock.Any(), gomock.Any()).
			Return(validToken(scopes...), nil).
			Times(1)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(scopeSets))
	for i, scopes := range scopeSets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = broker.Acquire(context.Background(), scopes)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestAcquire_InteractiveFallback(t *testing.T) {
	broker, provider := newTestBroker(t)
	scopes := []string{"admin.write"}
	tok := validToken(scopes...)

	gomock.InOrder(
		provider.EXPECT().
			AcquireTokenSilent(gomock.Any(), gomock.Any()).
			Return(nil, &idp.InteractionRequiredError{Reason: "expired grant"}),
		provider.EXPECT().
			AcquireTokenInteractive(gomock.Any(), gomock.Any()).
			Return(tok, nil),
	)

	got, err := broker.Acquire(context.Background(), scopes)
	require.NoError(t, err)
	assert.Same(t, tok, got)
}

func TestAcquire_FailureClearsInFlight(t *testing.T) {
	broker, provider := newTestBroker(t)
	scopes := []string{"core.read"}

	gomock.InOrder(
		provider.EXPECT().
			AcquireTokenSilent(gomock.Any(), gomock.Any()).
			Return(nil, &idp.AuthError{Code: "temporarily_unavailable"}),
		provider.EXPECT().
			AcquireTokenSilent(gomock.Any(), gomock.Any()).
			Return(validToken(scopes...), nil),
	)

	_, err := broker.Acquire(context.Background(), scopes)
	require.Error(t, err)

	// A failed attempt must not leave the key stuck in flight.
	_, err = broker.Acquire(context.Background(), scopes)
	require.NoError(t, err)
}

func TestForceRefresh_BypassesCacheNotSingleFlight(t *testing.T) {
	broker, provider := newTestBroker(t)
	scopes := []string{"core.read"}

	first := validToken(scopes...)
	second := validToken(scopes...)
	gomock.InOrder(
		provider.EXPECT().AcquireTokenSilent(gomock.Any(), gomock.Any()).Return(first, nil),
		provider.EXPECT().AcquireTokenSilent(gomock.Any(), gomock.Any()).Return(second, nil),
	)

	got, err := broker.Acquire(context.Background(), scopes)
	require.NoError(t, err)
	assert.Same(t, first, got)

	refreshed, err := broker.ForceRefresh(context.Background(), scopes)
	require.NoError(t, err)
	assert.Same(t, second, refreshed)

	// Refreshed token replaces the cache entry.
	cached, err := broker.Acquire(context.Background(), scopes)
	require.NoError(t, err)
	assert.Same(t, second, cached)
}

func TestAcquire_NoAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	broker := NewBroker(provider, func() *idp.Account { return nil }, slog.New(slog.DiscardHandler), nil)

	_, err := broker.Acquire(context.Background(), []string{"core.read"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestClear_DropsCachedTokens(t *testing.T) {
	broker, provider := newTestBroker(t)
	scopes := []string{"core.read"}

	provider.EXPECT().
		AcquireTokenSilent(gomock.Any(), gomock.Any()).
		Return(validToken(scopes...), nil).
		Times(2)

	_, err := broker.Acquire(context.Background(), scopes)
	require.NoError(t, err)

	broker.Clear()

	_, err = broker.Acquire(context.Background(), scopes)
	require.NoError(t, err)
}
