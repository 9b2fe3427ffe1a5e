package idp

import (
	"errors"
	"fmt"
)

// InteractionKind distinguishes how an interactive acquisition should be
// presented. In the gateway both collapse to a redirect challenge; the kind is
// kept so the transport layer can shape the response.
type InteractionKind string

const (
	InteractionPopup    InteractionKind = "popup"
	InteractionRedirect InteractionKind = "redirect"
)

// InteractionRequiredError signals that silent acquisition cannot proceed and
// the caller must fall back to an interactive flow.
type InteractionRequiredError struct {
	Reason string
	Kind   InteractionKind
}

func (e *InteractionRequiredError) Error() string {
	return "interaction required: " + e.Reason
}

// IsInteractionRequired reports whether err is or wraps an
// InteractionRequiredError.
func IsInteractionRequired(err error) bool {
	var target *InteractionRequiredError
	return errors.As(err, &target)
}

// RedirectChallengeError is returned by interactive acquisition when the only
// way to proceed is to send the user agent through the authorization redirect.
type RedirectChallengeError struct {
	AuthURL string
	Kind    InteractionKind
}

func (e *RedirectChallengeError) Error() string {
	return "interactive login required, redirect to authorization endpoint"
}

// AsRedirectChallenge extracts a RedirectChallengeError from err, if present.
func AsRedirectChallenge(err error) (*RedirectChallengeError, bool) {
	var target *RedirectChallengeError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AuthError is a terminal provider error (bad request, revoked consent,
// provider outage) carrying the provider's error code when known.
type AuthError struct {
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("provider error %q: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("provider error %q", e.Code)
}
