package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid schedule")

// Validate checks the recurrence configuration. The next-run calculator is
// permissive about missing day fields, so callers must validate before saving.
func (s *Schedule) Validate() error {
	if strings.TrimSpace(s.Target) == "" {
		return fmt.Errorf("%w: website_url is required", ErrInvalid)
	}
	if !s.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalid, s.Frequency)
	}
	switch s.Frequency {
	case Weekly:
		if s.DayOfWeek == nil || *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return fmt.Errorf("%w: weekly schedule needs day_of_week in 0..6", ErrInvalid)
		}
	case Monthly:
		if s.DayOfMonth == nil || *s.DayOfMonth < 1 || *s.DayOfMonth > 31 {
			return fmt.Errorf("%w: monthly schedule needs day_of_month in 1..31", ErrInvalid)
		}
	}
	if _, _, err := ParseTimeOfDay(s.TimeOfDay); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalid, s.Timezone)
		}
	}
	return nil
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS"; seconds are checked but
// ignored. Each part is one or two digits.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("time_of_day %q: want HH:MM", s)
	}
	limits := [...]int{23, 59, 59}
	names := [...]string{"hour", "minute", "second"}
	vals := make([]int, len(parts))
	for i, p := range parts {
		v, ok := clockField(p)
		if !ok || v > limits[i] {
			return 0, 0, fmt.Errorf("time_of_day %q: bad %s", s, names[i])
		}
		vals[i] = v
	}
	return vals[0], vals[1], nil
}

func clockField(p string) (int, bool) {
	if len(p) == 0 || len(p) > 2 {
		return 0, false
	}
	for _, c := range p {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(p)
	return v, err == nil
}

func FailureStatus(n int) string { return fmt.Sprintf(statusFailedTemplate, n) }
