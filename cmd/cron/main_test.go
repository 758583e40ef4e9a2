package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iddaa-lens/jobrunner/internal/config"
	"github.com/iddaa-lens/jobrunner/pkg/logger"
	"github.com/iddaa-lens/jobrunner/pkg/models"
	"github.com/iddaa-lens/jobrunner/pkg/store"
	"github.com/iddaa-lens/jobrunner/pkg/store/memory"
)

var errFetch = errors.New("connection refused")

type failingStore struct{}

func (failingStore) FetchAll(context.Context) ([]models.JobDefinition, error) {
	return nil, errFetch
}

func (failingStore) UpdateLastRun(context.Context, string, time.Time) error {
	return errFetch
}

// stubOpen swaps openStore for the test and counts Close calls
func stubOpen(t *testing.T, build func() (*store.Opened, error)) *atomic.Int32 {
	t.Helper()
	var closed atomic.Int32
	prev := openStore
	openStore = func(context.Context, *config.Config, *logger.Logger, bool) (*store.Opened, error) {
		opened, err := build()
		if err != nil {
			return nil, err
		}
		opened.Close = func() { closed.Add(1) }
		return opened, nil
	}
	t.Cleanup(func() { openStore = prev })
	return &closed
}

func memoryStore(t *testing.T) func() (*store.Opened, error) {
	return func() (*store.Opened, error) {
		s, err := memory.New(models.JobDefinition{
			Name:        "nightly",
			ActiveAfter: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			Weekdays:    models.EveryDay,
		})
		require.NoError(t, err)
		return &store.Opened{Store: s}, nil
	}
}

func testConfig(serverURL string) *config.Config {
	return &config.Config{
		Store:   config.StoreConfig{Driver: config.StoreDriverFile},
		Invoker: config.InvokerConfig{ServerURL: serverURL, AppID: "app", Timeout: 5},
		Scheduler: config.SchedulerConfig{
			Schedule:     "@every 1m",
			Concurrency:  2,
			CycleTimeout: 10 * time.Second,
		},
	}
}

var testNow = time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

func TestRun_DryRunPrintsDecisions(t *testing.T) {
	closed := stubOpen(t, memoryStore(t))

	var out bytes.Buffer
	err := run(context.Background(), testConfig("http://unused"), options{dryRun: true, at: testNow}, logger.Nop(), &out, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), closed.Load())

	var resp struct {
		Success bool `json:"success"`
		Data    []struct {
			Name     string `json:"name"`
			Eligible bool   `json:"eligible"`
		} `json:"data"`
		Meta struct {
			Total    int `json:"total"`
			Eligible int `json:"eligible"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "nightly", resp.Data[0].Name)
	assert.True(t, resp.Data[0].Eligible)
	assert.Equal(t, 1, resp.Meta.Total)
	assert.Equal(t, 1, resp.Meta.Eligible)
}

func TestRun_OnceInvokesEligibleJobs(t *testing.T) {
	closed := stubOpen(t, memoryStore(t))

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/jobs/nightly", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer srv.Close()

	err := run(context.Background(), testConfig(srv.URL), options{once: true, at: testNow}, logger.Nop(), &bytes.Buffer{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), closed.Load())
}

func TestRun_ClosesStoreOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		cfg     func(*config.Config)
		wantErr string
	}{
		{
			name:    "dry run fetch fails",
			opts:    options{dryRun: true, at: testNow},
			wantErr: "dry run",
		},
		{
			name:    "once fetch fails",
			opts:    options{once: true, at: testNow},
			wantErr: "schedule cycle",
		},
		{
			name:    "invalid schedule",
			cfg:     func(c *config.Config) { c.Scheduler.Schedule = "not a schedule" },
			wantErr: "register schedule cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closed := stubOpen(t, func() (*store.Opened, error) {
				return &store.Opened{Store: failingStore{}}, nil
			})

			cfg := testConfig("http://unused")
			if tt.cfg != nil {
				tt.cfg(cfg)
			}

			quit := make(chan os.Signal, 1)
			quit <- os.Interrupt
			err := run(context.Background(), cfg, tt.opts, logger.Nop(), &bytes.Buffer{}, quit)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, int32(1), closed.Load())
		})
	}
}

func TestRun_OpenFailure(t *testing.T) {
	closed := stubOpen(t, func() (*store.Opened, error) {
		return nil, errFetch
	})

	err := run(context.Background(), testConfig("http://unused"), options{once: true, at: testNow}, logger.Nop(), &bytes.Buffer{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errFetch)
	assert.Zero(t, closed.Load())
}

func TestRun_DaemonStopsOnSignal(t *testing.T) {
	closed := stubOpen(t, memoryStore(t))

	quit := make(chan os.Signal, 1)
	quit <- os.Interrupt
	err := run(context.Background(), testConfig("http://unused"), options{at: testNow}, logger.Nop(), &bytes.Buffer{}, quit)
	require.NoError(t, err)
	assert.Equal(t, int32(1), closed.Load())
}
