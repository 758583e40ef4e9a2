package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekdayMask(t *testing.T) {
	tests := []struct {
		name     string
		flags    []string
		expected WeekdayMask
		wantErr  bool
	}{
		{
			name:     "all days",
			flags:    []string{"1", "1", "1", "1", "1", "1", "1"},
			expected: EveryDay,
		},
		{
			name:     "weekdays only",
			flags:    []string{"0", "1", "1", "1", "1", "1", "0"},
			expected: WeekdayMask{false, true, true, true, true, true, false},
		},
		{
			name:     "boolean words",
			flags:    []string{"true", "false", "t", "f", "TRUE", "", "0"},
			expected: WeekdayMask{true, false, true, false, true, false, false},
		},
		{name: "six flags", flags: []string{"1", "1", "1", "1", "1", "1"}, wantErr: true},
		{name: "eight flags", flags: []string{"1", "1", "1", "1", "1", "1", "1", "1"}, wantErr: true},
		{name: "nil", flags: nil, wantErr: true},
		{name: "unknown flag", flags: []string{"1", "1", "yes", "1", "1", "1", "1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWeekdayMask(tt.flags)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidWeekdayMask)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWeekdayMask_Allows(t *testing.T) {
	mask := WeekdayMask{false, false, false, true, false, false, false}
	assert.True(t, mask.Allows(time.Wednesday))
	assert.False(t, mask.Allows(time.Sunday))
	assert.False(t, mask.Allows(time.Weekday(9)))
	assert.Equal(t, "0001000", mask.String())
}

func TestWeekdayMask_JSON(t *testing.T) {
	mask := WeekdayMask{true, false, true, false, true, false, true}

	data, err := json.Marshal(mask)
	require.NoError(t, err)
	assert.JSONEq(t, `["1","0","1","0","1","0","1"]`, string(data))

	var decoded WeekdayMask
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, mask, decoded)

	require.NoError(t, json.Unmarshal([]byte(`[true,true,false,false,false,false,true]`), &decoded))
	assert.Equal(t, WeekdayMask{true, true, false, false, false, false, true}, decoded)

	assert.ErrorIs(t, json.Unmarshal([]byte(`[true,true]`), &decoded), ErrInvalidWeekdayMask)
}
