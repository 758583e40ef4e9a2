package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iddaa-lens/jobrunner/pkg/models"
	"github.com/iddaa-lens/jobrunner/pkg/schedule"
)

const sampleJobs = `
jobs:
  - jobName: partyJanitor
    description: Purges old parties
    params:
      olderThanDays: 7
      dryRun: false
      tags: [a, b]
    startAfter: "2016-02-29T17:05:39.000Z"
    daysOfWeek: ["1", "1", "1", "1", "1", "1", "1"]
    timeOfDay: "00:00:28.417Z"
    lastRun: 1456765539
    repeatMinutes: 15
  - jobName: weeklyReport
    params: "{}"
    startAfter: "2020-01-01T00:00:00Z"
    daysOfWeek: ["0", "1", "0", "0", "0", "0", "0"]
    timeOfDay: "09:30"
`

func TestParseYAML(t *testing.T) {
	defs, err := ParseYAML([]byte(sampleJobs))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	janitor := defs[0]
	assert.Equal(t, "partyJanitor", janitor.Name)
	assert.Equal(t, "Purges old parties", janitor.Description)
	assert.Equal(t, `{"olderThanDays":7,"dryRun":false,"tags":["a","b"]}`, string(janitor.Params))
	assert.Equal(t, time.Date(2016, 2, 29, 17, 5, 39, 0, time.UTC), janitor.ActiveAfter)
	assert.Equal(t, models.EveryDay, janitor.Weekdays)
	assert.Equal(t, int64(28_417), janitor.TimeOfDay.Milliseconds())
	require.NotNil(t, janitor.LastRunAt)
	assert.Equal(t, int64(1456765539), janitor.LastRunAt.Unix())
	assert.Equal(t, 15, janitor.RepeatIntervalMinutes)

	weekly := defs[1]
	assert.Equal(t, "{}", string(weekly.Params))
	assert.True(t, weekly.Weekdays.Allows(time.Monday))
	assert.False(t, weekly.Weekdays.Allows(time.Sunday))
	assert.Equal(t, int64(9*3600*1000+30*60*1000), weekly.TimeOfDay.Milliseconds())
	assert.Nil(t, weekly.LastRunAt)
	assert.False(t, weekly.Repeats())
}

func TestParseYAML_ZeroLastRunMeansNeverRan(t *testing.T) {
	defs, err := ParseYAML([]byte(`
jobs:
  - jobName: oneShot
    startAfter: "2017-01-02T00:00:01Z"
    daysOfWeek: ["1", "1", "1", "1", "1", "1", "1"]
    lastRun: 0
`))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Nil(t, defs[0].LastRunAt)

	decision := schedule.Evaluate(defs[0], time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC))
	assert.True(t, decision.Eligible)
}

func TestParseYAML_StartAfterLayouts(t *testing.T) {
	want := time.Date(2017, 1, 2, 0, 0, 1, 0, time.UTC)

	tests := []struct {
		name       string
		startAfter string
	}{
		{name: "rfc3339", startAfter: "2017-01-02T00:00:01Z"},
		{name: "rfc3339 with millis", startAfter: "2017-01-02T00:00:01.000Z"},
		{name: "space separated", startAfter: "2017-01-02 00:00:01Z"},
		{name: "space separated with offset", startAfter: "2017-01-02 03:00:01+03:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, err := ParseYAML([]byte(`
jobs:
  - jobName: a
    startAfter: "` + tt.startAfter + `"
    daysOfWeek: ["1", "1", "1", "1", "1", "1", "1"]
`))
			require.NoError(t, err)
			require.Len(t, defs, 1)
			assert.True(t, want.Equal(defs[0].ActiveAfter), "got %s", defs[0].ActiveAfter)
		})
	}
}

func TestParseYAML_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name: "short weekday mask",
			input: `
jobs:
  - jobName: a
    startAfter: "2020-01-01T00:00:00Z"
    daysOfWeek: ["1", "1"]
`,
			wantErr: models.ErrInvalidWeekdayMask,
		},
		{
			name: "bad time of day",
			input: `
jobs:
  - jobName: a
    startAfter: "2020-01-01T00:00:00Z"
    daysOfWeek: ["1", "1", "1", "1", "1", "1", "1"]
    timeOfDay: "25:00"
`,
			wantErr: models.ErrInvalidTimeOfDay,
		},
		{
			name: "missing start",
			input: `
jobs:
  - jobName: a
    daysOfWeek: ["1", "1", "1", "1", "1", "1", "1"]
`,
			wantErr: models.ErrInvalidJobDefinition,
		},
		{
			name: "negative repeat",
			input: `
jobs:
  - jobName: a
    startAfter: "2020-01-01T00:00:00Z"
    daysOfWeek: ["1", "1", "1", "1", "1", "1", "1"]
    repeatMinutes: -5
`,
			wantErr: models.ErrInvalidJobDefinition,
		},
		{
			name: "duplicate names",
			input: `
jobs:
  - jobName: a
    startAfter: "2020-01-01T00:00:00Z"
    daysOfWeek: ["1", "1", "1", "1", "1", "1", "1"]
  - jobName: a
    startAfter: "2020-01-01T00:00:00Z"
    daysOfWeek: ["1", "1", "1", "1", "1", "1", "1"]
`,
			wantErr: models.ErrInvalidJobDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseYAML_Malformed(t *testing.T) {
	_, err := ParseYAML([]byte("jobs: [\n"))
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleJobs), 0o600))

	store, err := LoadYAML(path)
	require.NoError(t, err)

	defs, err := store.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "partyJanitor", defs[0].Name)
	assert.Equal(t, "weeklyReport", defs[1].Name)
}

func TestLoadYAML_MissingFile(t *testing.T) {
	_, err := LoadYAML(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
