// Package authz derives the coarse authorization flags route guards read.
// Check failures never escape the gate: guards always receive a definite
// boolean, with the underlying error recorded for display.
package authz

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ProfileAPI is the slice of the core resource client the gate needs.
type ProfileAPI interface {
	JSON(ctx context.Context, method, path string, body any) (json.RawMessage, error)
}

// Flags are the derived authorization booleans.
type Flags struct {
	IsAuthorized bool `json:"isAuthorized"`
	IsAdmin      bool `json:"isAdmin"`
}

// Gate computes and caches authorization flags for the current account.
type Gate struct {
	api ProfileAPI
	log *slog.Logger

	mu      sync.RWMutex
	flags   Flags
	lastErr error
}

// NewGate creates a gate over the core resource client.
func NewGate(api ProfileAPI, log *slog.Logger) *Gate {
	return &Gate{api: api, log: log}
}

// currentUserProfile is the permission shape of the /currentuser response.
type currentUserProfile struct {
	Read *bool `json:"Read"`
}

// CheckAuthorization calls the current-user endpoint and maps the response to
// a boolean. An empty or 204 response means no restriction header is present
// and defaults to true: this default-permissive behavior is the documented
// contract of the backend and must not be tightened here.
func (g *Gate) CheckAuthorization(ctx context.Context) bool {
	payload, err := g.api.JSON(ctx, "GET", "/currentuser", nil)
	if err != nil {
		g.recordError(err)
		g.setAuthorized(false)
		return false
	}
	if payload == nil {
		g.setAuthorized(true)
		return true
	}

	var profile currentUserProfile
	if err := json.Unmarshal(payload, &profile); err != nil {
		g.recordError(err)
		g.setAuthorized(false)
		return false
	}
	authorized := profile.Read == nil || *profile.Read
	g.setAuthorized(authorized)
	return authorized
}

// contributeResponse is the admin-flag shape of the /contribute response.
type contributeResponse struct {
	Value bool `json:"value"`
}

// CheckAdminAuthorization calls the contribute endpoint and maps the response
// to the admin flag. Unlike CheckAuthorization there is no permissive
// default: missing or failed responses mean not admin.
func (g *Gate) CheckAdminAuthorization(ctx context.Context) bool {
	payload, err := g.api.JSON(ctx, "GET", "/contribute", nil)
	if err != nil {
		g.recordError(err)
		g.setAdmin(false)
		return false
	}
	if payload == nil {
		g.setAdmin(false)
		return false
	}

	var resp contributeResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		g.recordError(err)
		g.setAdmin(false)
		return false
	}
	g.setAdmin(resp.Value)
	return resp.Value
}

// Recompute refreshes both flags concurrently. Called whenever the session
// transitions into the authenticated state or on explicit re-check.
func (g *Gate) Recompute(ctx context.Context) Flags {
	g.mu.Lock()
	g.lastErr = nil
	g.mu.Unlock()

	var eg errgroup.Group
	eg.Go(func() error {
		g.CheckAuthorization(ctx)
		return nil
	})
	eg.Go(func() error {
		g.CheckAdminAuthorization(ctx)
		return nil
	})
	_ = eg.Wait()
	return g.Flags()
}

// Flags returns the cached flags.
func (g *Gate) Flags() Flags {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.flags
}

// Err returns the last recorded check error, if any.
func (g *Gate) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastErr
}

// Invalidate clears the flags, so observers never see authorization flags
// referencing a stale account after logout.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	g.flags = Flags{}
	g.lastErr = nil
	g.mu.Unlock()
}

func (g *Gate) setAuthorized(v bool) {
	g.mu.Lock()
	g.flags.IsAuthorized = v
	g.mu.Unlock()
}

func (g *Gate) setAdmin(v bool) {
	g.mu.Lock()
	g.flags.IsAdmin = v
	g.mu.Unlock()
}

func (g *Gate) recordError(err error) {
	g.log.Warn("authorization check failed", "error", err)
	g.mu.Lock()
	g.lastErr = err
	g.mu.Unlock()
}
