package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "midnight with zone suffix", input: "00:00:00.000Z", expected: 0},
		{name: "stored fixture format", input: "00:00:28.417Z", expected: 28*time.Second + 417*time.Millisecond},
		{name: "noon without fraction", input: "12:00:00", expected: 12 * time.Hour},
		{name: "hours and minutes only", input: "22:30", expected: 22*time.Hour + 30*time.Minute},
		{name: "last millisecond", input: "23:59:59.999", expected: day - time.Millisecond},
		{name: "short fraction is padded", input: "01:02:03.5Z", expected: time.Hour + 2*time.Minute + 3*time.Second + 500*time.Millisecond},
		{name: "long fraction is truncated", input: "01:02:03.123999", expected: time.Hour + 2*time.Minute + 3*time.Second + 123*time.Millisecond},
		{name: "empty", input: "", wantErr: true},
		{name: "hour out of range", input: "24:00:00", wantErr: true},
		{name: "minute out of range", input: "10:60", wantErr: true},
		{name: "garbage", input: "noon", wantErr: true},
		{name: "too many parts", input: "1:2:3:4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTimeOfDay)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, time.Duration(got))
		})
	}
}

func TestTimeOfDayOf(t *testing.T) {
	now := time.Date(2017, 1, 1, 11, 59, 59, 999_999_999, time.UTC)
	assert.Equal(t, "11:59:59.999Z", TimeOfDayOf(now).String())

	// Non-UTC instants are converted before extracting the clock
	plus3 := time.FixedZone("UTC+3", 3*60*60)
	local := time.Date(2017, 1, 1, 2, 0, 0, 0, plus3)
	assert.Equal(t, "23:00:00.000Z", TimeOfDayOf(local).String())
}

func TestTimeOfDay_JSON(t *testing.T) {
	tod, err := NewTimeOfDay(9, 5, 7, 42)
	require.NoError(t, err)

	data, err := json.Marshal(tod)
	require.NoError(t, err)
	assert.JSONEq(t, `"09:05:07.042Z"`, string(data))

	var decoded TimeOfDay
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tod, decoded)

	assert.Error(t, json.Unmarshal([]byte(`"25:00"`), &decoded))
}
