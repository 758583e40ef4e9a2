package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeOfDay is returned when a time-of-day value cannot be parsed or is out of range
var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// TimeOfDay is the offset from UTC midnight, at millisecond resolution
type TimeOfDay time.Duration

const day = 24 * time.Hour

// NewTimeOfDay builds a TimeOfDay from clock components
func NewTimeOfDay(hour, minute, second, millisecond int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 ||
		millisecond < 0 || millisecond > 999 {
		return 0, fmt.Errorf("%w: %02d:%02d:%02d.%03d", ErrInvalidTimeOfDay, hour, minute, second, millisecond)
	}

	d := time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second +
		time.Duration(millisecond)*time.Millisecond
	return TimeOfDay(d), nil
}

// ParseTimeOfDay parses "HH:MM", "HH:MM:SS" or "HH:MM:SS.mmm", with an optional trailing "Z"
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	s := strings.TrimSuffix(strings.TrimSpace(value), "Z")
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidTimeOfDay)
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: hour in %q", ErrInvalidTimeOfDay, value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: minute in %q", ErrInvalidTimeOfDay, value)
	}

	second, millisecond := 0, 0
	if len(parts) == 3 {
		secPart, fracPart, hasFrac := strings.Cut(parts[2], ".")
		if second, err = strconv.Atoi(secPart); err != nil {
			return 0, fmt.Errorf("%w: second in %q", ErrInvalidTimeOfDay, value)
		}
		if hasFrac {
			if millisecond, err = parseMillis(fracPart); err != nil {
				return 0, fmt.Errorf("%w: fraction in %q", ErrInvalidTimeOfDay, value)
			}
		}
	}

	return NewTimeOfDay(hour, minute, second, millisecond)
}

// parseMillis reads up to three fractional digits; extra digits are truncated
func parseMillis(frac string) (int, error) {
	if frac == "" || len(frac) > 9 {
		return 0, fmt.Errorf("bad fraction %q", frac)
	}
	for len(frac) < 3 {
		frac += "0"
	}
	return strconv.Atoi(frac[:3])
}

// TimeOfDayOf returns the UTC clock time of t, truncated to milliseconds
func TimeOfDayOf(t time.Time) TimeOfDay {
	utc := t.UTC()
	d := time.Duration(utc.Hour())*time.Hour +
		time.Duration(utc.Minute())*time.Minute +
		time.Duration(utc.Second())*time.Second +
		time.Duration(utc.Nanosecond()/int(time.Millisecond))*time.Millisecond
	return TimeOfDay(d)
}

// Valid reports whether the value lies within a single day
func (t TimeOfDay) Valid() bool {
	return t >= 0 && time.Duration(t) < day
}

// Milliseconds returns the offset from midnight in milliseconds
func (t TimeOfDay) Milliseconds() int64 {
	return time.Duration(t).Milliseconds()
}

// String renders the value as "HH:MM:SS.mmmZ"
func (t TimeOfDay) String() string {
	ms := t.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03dZ",
		ms/3_600_000, (ms/60_000)%60, (ms/1000)%60, ms%1000)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimeOfDay, err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
