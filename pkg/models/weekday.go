package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidWeekdayMask is returned when a weekday mask does not have exactly 7 valid flags
var ErrInvalidWeekdayMask = errors.New("invalid weekday mask")

// WeekdayMask holds one flag per UTC weekday, indexed 0=Sunday..6=Saturday
type WeekdayMask [7]bool

// EveryDay is a mask with all seven days enabled
var EveryDay = WeekdayMask{true, true, true, true, true, true, true}

// ParseWeekdayMask builds a mask from stored flags.
// Accepted flag values: "1"/"0", "true"/"false", "t"/"f".
func ParseWeekdayMask(flags []string) (WeekdayMask, error) {
	var mask WeekdayMask
	if len(flags) != len(mask) {
		return mask, fmt.Errorf("%w: expected 7 flags, got %d", ErrInvalidWeekdayMask, len(flags))
	}

	for i, flag := range flags {
		switch strings.ToLower(strings.TrimSpace(flag)) {
		case "1", "true", "t":
			mask[i] = true
		case "0", "false", "f", "":
			mask[i] = false
		default:
			return mask, fmt.Errorf("%w: unknown flag %q at index %d", ErrInvalidWeekdayMask, flag, i)
		}
	}

	return mask, nil
}

// WeekdayMaskFromBools builds a mask from a variable-length slice, failing unless it has 7 entries
func WeekdayMaskFromBools(flags []bool) (WeekdayMask, error) {
	var mask WeekdayMask
	if len(flags) != len(mask) {
		return mask, fmt.Errorf("%w: expected 7 flags, got %d", ErrInvalidWeekdayMask, len(flags))
	}
	copy(mask[:], flags)
	return mask, nil
}

// Allows reports whether the mask enables the given weekday
func (m WeekdayMask) Allows(day time.Weekday) bool {
	if day < time.Sunday || day > time.Saturday {
		return false
	}
	return m[day]
}

// Flags returns the mask in the "1"/"0" storage form
func (m WeekdayMask) Flags() []string {
	flags := make([]string, len(m))
	for i, on := range m {
		if on {
			flags[i] = "1"
		} else {
			flags[i] = "0"
		}
	}
	return flags
}

// String renders the mask as seven digits, Sunday first (e.g. "0111110")
func (m WeekdayMask) String() string {
	return strings.Join(m.Flags(), "")
}

func (m WeekdayMask) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Flags())
}

func (m *WeekdayMask) UnmarshalJSON(data []byte) error {
	var flags []string
	if err := json.Unmarshal(data, &flags); err != nil {
		var bools []bool
		if boolErr := json.Unmarshal(data, &bools); boolErr != nil {
			return fmt.Errorf("%w: %v", ErrInvalidWeekdayMask, err)
		}
		parsed, err := WeekdayMaskFromBools(bools)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}

	parsed, err := ParseWeekdayMask(flags)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
