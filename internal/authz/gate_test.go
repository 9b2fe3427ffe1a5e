package authz

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAPI returns canned payloads per path.
type stubAPI struct {
	payloads map[string]json.RawMessage
	errs     map[string]error
}

func (s *stubAPI) JSON(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if err := s.errs[path]; err != nil {
		return nil, err
	}
	return s.payloads[path], nil
}

func newGate(api ProfileAPI) *Gate {
	return NewGate(api, slog.New(slog.DiscardHandler))
}

func TestCheckAuthorization_EmptyResponseDefaultsPermissive(t *testing.T) {
	gate := newGate(&stubAPI{payloads: map[string]json.RawMessage{}})

	assert.True(t, gate.CheckAuthorization(context.Background()))
	assert.True(t, gate.Flags().IsAuthorized)
}

func TestCheckAuthorization_ReadFalseDenies(t *testing.T) {
	gate := newGate(&stubAPI{payloads: map[string]json.RawMessage{
		"/currentuser": json.RawMessage(`{"Read": false}`),
	}})

	assert.False(t, gate.CheckAuthorization(context.Background()))
}

func TestCheckAuthorization_ReadTrueAllows(t *testing.T) {
	gate := newGate(&stubAPI{payloads: map[string]json.RawMessage{
		"/currentuser": json.RawMessage(`{"Read": true, "name": "ada"}`),
	}})

	assert.True(t, gate.CheckAuthorization(context.Background()))
}

func TestCheckAuthorization_BodyWithoutReadFieldAllows(t *testing.T) {
	gate := newGate(&stubAPI{payloads: map[string]json.RawMessage{
		"/currentuser": json.RawMessage(`{"name": "ada"}`),
	}})

	assert.True(t, gate.CheckAuthorization(context.Background()))
}

func TestCheckAuthorization_ErrorYieldsFalseNotPanic(t *testing.T) {
	wantErr := errors.New("backend down")
	gate := newGate(&stubAPI{errs: map[string]error{"/currentuser": wantErr}})

	assert.False(t, gate.CheckAuthorization(context.Background()))
	assert.ErrorIs(t, gate.Err(), wantErr)
}

func TestCheckAdminAuthorization(t *testing.T) {
	t.Run("value true grants admin", func(t *testing.T) {
		gate := newGate(&stubAPI{payloads: map[string]json.RawMessage{
			"/contribute": json.RawMessage(`{"value": true}`),
		}})
		assert.True(t, gate.CheckAdminAuthorization(context.Background()))
	})

	t.Run("empty response is not admin", func(t *testing.T) {
		gate := newGate(&stubAPI{payloads: map[string]json.RawMessage{}})
		assert.False(t, gate.CheckAdminAuthorization(context.Background()))
	})

	t.Run("error is not admin", func(t *testing.T) {
		gate := newGate(&stubAPI{errs: map[string]error{"/contribute": errors.New("boom")}})
		assert.False(t, gate.CheckAdminAuthorization(context.Background()))
	})
}

func TestRecompute_SetsBothFlags(t *testing.T) {
	gate := newGate(&stubAPI{payloads: map[string]json.RawMessage{
		"/currentuser": json.RawMessage(`{"Read": true}`),
		"/contribute":  json.RawMessage(`{"value": true}`),
	}})

	flags := gate.Recompute(context.Background())
	require.True(t, flags.IsAuthorized)
	require.True(t, flags.IsAdmin)
}

func TestInvalidate_ClearsFlags(t *testing.T) {
	gate := newGate(&stubAPI{payloads: map[string]json.RawMessage{
		"/currentuser": json.RawMessage(`{"Read": true}`),
		"/contribute":  json.RawMessage(`{"value": true}`),
	}})
	gate.Recompute(context.Background())

	gate.Invalidate()

	assert.Equal(t, Flags{}, gate.Flags())
	assert.NoError(t, gate.Err())
}
