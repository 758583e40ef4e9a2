package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iddaa-lens/jobrunner/pkg/jobs"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	noop := func(ctx context.Context, params json.RawMessage) error { return nil }

	require.NoError(t, r.Register("b", noop))
	require.NoError(t, r.Register("a", noop))
	assert.Error(t, r.Register("a", noop))
	assert.Error(t, r.Register(" ", noop))
	assert.Error(t, r.Register("c", nil))
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegistry_Invoke(t *testing.T) {
	r := NewRegistry()
	var got json.RawMessage
	require.NoError(t, r.Register("ok", func(ctx context.Context, params json.RawMessage) error {
		got = params
		return nil
	}))
	require.NoError(t, r.Register("fails", func(ctx context.Context, params json.RawMessage) error {
		return errors.New("boom")
	}))
	require.NoError(t, r.Register("panics", func(ctx context.Context, params json.RawMessage) error {
		panic("kaboom")
	}))

	ctx := context.Background()
	require.NoError(t, r.Invoke(ctx, "ok", json.RawMessage(`{"a":1}`)))
	assert.JSONEq(t, `{"a":1}`, string(got))

	err := r.Invoke(ctx, "fails", nil)
	assert.ErrorIs(t, err, jobs.ErrHandlerFailed)
	assert.Contains(t, err.Error(), "boom")

	err = r.Invoke(ctx, "panics", nil)
	assert.ErrorIs(t, err, jobs.ErrHandlerFailed)
	assert.Contains(t, err.Error(), "kaboom")

	err = r.Invoke(ctx, "missing", nil)
	assert.ErrorIs(t, err, jobs.ErrUnknownJob)
}
