package session

import "assetgate/internal/idp"

// Status is the session lifecycle state.
type Status string

const (
	StatusUninitialized  Status = "uninitialized"
	StatusInitializing   Status = "initializing"
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusFailed         Status = "failed"
)

// Reduce folds one provider event into the session status. Pure: all side
// effects (timers, persistence, audit) live in the Manager, which applies the
// reduced status under its lock.
func Reduce(current Status, event idp.Event) Status {
	switch event.Type {
	case idp.EventRedirectStart:
		return StatusAuthenticating
	case idp.EventLoginSuccess:
		return StatusAuthenticated
	case idp.EventLoginFailure:
		return StatusFailed
	case idp.EventLogoutSuccess:
		return StatusAnonymous
	default:
		// RedirectEnd and TokenAcquired carry no transition on their own.
		return current
	}
}
