package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iddaa-lens/jobrunner/pkg/jobs"
	"github.com/iddaa-lens/jobrunner/pkg/models"
)

func testJob(name string) models.JobDefinition {
	return models.JobDefinition{
		Name:                  name,
		ActiveAfter:           time.Date(2016, 2, 29, 17, 5, 39, 0, time.UTC),
		Weekdays:              models.EveryDay,
		Params:                json.RawMessage(`{"olderThanDays":7}`),
		RepeatIntervalMinutes: 15,
	}
}

func TestStore_FetchAllKeepsInsertionOrder(t *testing.T) {
	store, err := New(testJob("zeta"), testJob("alpha"), testJob("mid"))
	require.NoError(t, err)

	defs, err := store.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, "zeta", defs[0].Name)
	assert.Equal(t, "alpha", defs[1].Name)
	assert.Equal(t, "mid", defs[2].Name)
}

func TestStore_PutReplacesInPlace(t *testing.T) {
	store, err := New(testJob("a"), testJob("b"))
	require.NoError(t, err)

	updated := testJob("a")
	updated.Description = "replaced"
	require.NoError(t, store.Put(updated))

	defs, err := store.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)
	assert.Equal(t, "replaced", defs[0].Description)
}

func TestStore_PutRejectsInvalid(t *testing.T) {
	store, err := New()
	require.NoError(t, err)

	bad := testJob("")
	err = store.Put(bad)
	assert.ErrorIs(t, err, models.ErrInvalidJobDefinition)

	_, err = New(testJob("ok"), models.JobDefinition{Name: "neg", RepeatIntervalMinutes: -1})
	assert.ErrorIs(t, err, models.ErrInvalidJobDefinition)
}

func TestStore_ReturnsCopies(t *testing.T) {
	store, err := New(testJob("a"))
	require.NoError(t, err)

	defs, err := store.FetchAll(context.Background())
	require.NoError(t, err)
	defs[0].Params[0] = '['
	defs[0].Description = "mutated"

	got, ok := store.Get("a")
	require.True(t, ok)
	assert.JSONEq(t, `{"olderThanDays":7}`, string(got.Params))
	assert.Empty(t, got.Description)
}

func TestStore_UpdateLastRun(t *testing.T) {
	store, err := New(testJob("a"))
	require.NoError(t, err)
	ctx := context.Background()

	at := time.Date(2024, 1, 1, 12, 0, 0, 750_000_000, time.UTC)
	require.NoError(t, store.UpdateLastRun(ctx, "a", at))

	got, _ := store.Get("a")
	require.NotNil(t, got.LastRunAt)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), *got.LastRunAt)

	// an older run never overwrites a newer one
	require.NoError(t, store.UpdateLastRun(ctx, "a", at.Add(-time.Hour)))
	got, _ = store.Get("a")
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), *got.LastRunAt)

	require.NoError(t, store.UpdateLastRun(ctx, "a", at.Add(time.Hour)))
	got, _ = store.Get("a")
	assert.Equal(t, time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), *got.LastRunAt)
}

func TestStore_UpdateLastRunUnknownJob(t *testing.T) {
	store, err := New()
	require.NoError(t, err)

	err = store.UpdateLastRun(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestStore_FetchAllCancelled(t *testing.T) {
	store, err := New(testJob("a"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.FetchAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store, err := New(testJob("a"), testJob("b"))
	require.NoError(t, err)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.UpdateLastRun(ctx, "a", base.Add(time.Duration(i)*time.Second))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = store.FetchAll(ctx)
		}()
	}
	wg.Wait()

	got, _ := store.Get("a")
	require.NotNil(t, got.LastRunAt)
	assert.Equal(t, base.Add(49*time.Second), *got.LastRunAt)
}
