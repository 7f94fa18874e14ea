// Package nextrun computes when a recurring schedule fires next.
//
// All arithmetic is done on wall-clock dates in the recurrence's location, so
// adding a day across a DST change keeps the configured time of day.
package nextrun

import (
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
)

var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// MonthOverflow decides what a monthly day-of-month does in a shorter month.
type MonthOverflow int

const (
	// RollOver lets the calendar normalize the date: day 31 in April is May 1.
	RollOver MonthOverflow = iota
	// Clamp pins the date to the last day of the month: day 31 in April is April 30.
	Clamp
)

func ParseOverflow(s string) (MonthOverflow, error) {
	switch s {
	case "", "rollover", "roll_over":
		return RollOver, nil
	case "clamp":
		return Clamp, nil
	}
	return RollOver, fmt.Errorf("unknown month overflow policy %q", s)
}

type Recurrence struct {
	Frequency  schedule.Frequency
	DayOfWeek  *int
	DayOfMonth *int
	TimeOfDay  string
	// Location of the wall clock; nil means the location of the reference time.
	Location *time.Location
	Overflow MonthOverflow
}

// FromSchedule builds the recurrence of s. An empty schedule timezone falls
// back to def.
func FromSchedule(s *schedule.Schedule, def *time.Location, overflow MonthOverflow) (Recurrence, error) {
	loc := def
	if s.Timezone != "" {
		l, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return Recurrence{}, fmt.Errorf("load timezone %q: %w", s.Timezone, err)
		}
		loc = l
	}
	return Recurrence{
		Frequency:  s.Frequency,
		DayOfWeek:  s.DayOfWeek,
		DayOfMonth: s.DayOfMonth,
		TimeOfDay:  s.TimeOfDay,
		Location:   loc,
		Overflow:   overflow,
	}, nil
}

// Next returns the first fire time strictly after now.
//
// A weekly recurrence without a day of week, or a monthly one without a day of
// month, fires daily. Only a malformed time of day is an error.
func Next(r Recurrence, now time.Time) (time.Time, error) {
	hour, minute, err := schedule.ParseTimeOfDay(r.TimeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTimeOfDay, err)
	}
	loc := r.Location
	if loc == nil {
		loc = now.Location()
	}
	local := now.In(loc)

	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !candidate.After(now) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}

	switch r.Frequency {
	case schedule.Weekly:
		if r.DayOfWeek == nil {
			return candidate, nil
		}
		days := ((*r.DayOfWeek-int(candidate.Weekday()))%7 + 7) % 7
		return time.Date(candidate.Year(), candidate.Month(), candidate.Day()+days, hour, minute, 0, 0, loc), nil

	case schedule.Monthly:
		if r.DayOfMonth == nil {
			return candidate, nil
		}
		dom := *r.DayOfMonth
		next := monthDay(candidate.Year(), candidate.Month(), dom, hour, minute, loc, r.Overflow)
		if !next.After(now) {
			next = monthDay(candidate.Year(), candidate.Month()+1, dom, hour, minute, loc, r.Overflow)
		}
		if !next.After(now) {
			// out-of-range day_of_month normalized backwards
			return candidate, nil
		}
		return next, nil
	}

	return candidate, nil
}

// Upcoming returns the next n fire times after from.
func Upcoming(r Recurrence, from time.Time, n int) ([]time.Time, error) {
	out := make([]time.Time, 0, n)
	at := from
	for i := 0; i < n; i++ {
		next, err := Next(r, at)
		if err != nil {
			return nil, err
		}
		out = append(out, next)
		at = next
	}
	return out, nil
}

func monthDay(year int, month time.Month, day, hour, minute int, loc *time.Location, o MonthOverflow) time.Time {
	if o == Clamp {
		if last := daysIn(year, month); day > last {
			day = last
		}
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
