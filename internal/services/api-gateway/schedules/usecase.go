package schedules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
	"github.com/NordCoder/GetMoreSeo/internal/domain/schedulelog"
	"github.com/NordCoder/GetMoreSeo/internal/nextrun"
	"github.com/NordCoder/GetMoreSeo/internal/services/api-gateway/httpx"
)

const maxPreview = 20

type Usecase struct {
	repo     schedule.Repo
	logs     schedulelog.Repo
	loc      *time.Location
	overflow nextrun.MonthOverflow
	clk      func() time.Time
}

func New(repo schedule.Repo, logs schedulelog.Repo, loc *time.Location, overflow nextrun.MonthOverflow, clk func() time.Time) *Usecase {
	if loc == nil {
		loc = time.UTC
	}
	if clk == nil {
		clk = func() time.Time { return time.Now().UTC() }
	}
	return &Usecase{repo: repo, logs: logs, loc: loc, overflow: overflow, clk: clk}
}

// CreateInput is the user-supplied part of a schedule. NextRun overrides the
// computed first run.
type CreateInput struct {
	Target     string             `json:"website_url"`
	Frequency  schedule.Frequency `json:"frequency"`
	DayOfWeek  *int               `json:"day_of_week,omitempty"`
	DayOfMonth *int               `json:"day_of_month,omitempty"`
	TimeOfDay  string             `json:"time_of_day"`
	Timezone   string             `json:"timezone,omitempty"`
	NextRun    *time.Time         `json:"next_run,omitempty"`
}

func (u *Usecase) Create(ctx context.Context, ownerID uuid.UUID, in CreateInput) (*schedule.Schedule, error) {
	s := &schedule.Schedule{
		UserID:     ownerID,
		Target:     strings.TrimSpace(in.Target),
		IsActive:   true,
		Frequency:  schedule.Frequency(strings.ToLower(string(in.Frequency))),
		DayOfWeek:  in.DayOfWeek,
		DayOfMonth: in.DayOfMonth,
		TimeOfDay:  in.TimeOfDay,
		Timezone:   in.Timezone,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	// day fields that do not apply to the frequency are dropped
	switch s.Frequency {
	case schedule.Daily:
		s.DayOfWeek, s.DayOfMonth = nil, nil
	case schedule.Weekly:
		s.DayOfMonth = nil
	case schedule.Monthly:
		s.DayOfWeek = nil
	}

	if in.NextRun != nil {
		s.NextRun = in.NextRun.UTC()
	} else {
		next, err := u.next(s, u.clk())
		if err != nil {
			return nil, err
		}
		s.NextRun = next
	}

	if err := u.repo.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (u *Usecase) Get(ctx context.Context, requesterID uuid.UUID, id schedule.ID) (*schedule.Schedule, error) {
	s, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.UserID != requesterID {
		return nil, httpx.ErrForbidden
	}
	return s, nil
}

func (u *Usecase) ListByUser(ctx context.Context, requesterID uuid.UUID) ([]*schedule.Schedule, error) {
	return u.repo.ListByUser(ctx, requesterID)
}

func (u *Usecase) Cancel(ctx context.Context, requesterID uuid.UUID, id schedule.ID) (*schedule.Schedule, error) {
	s, err := u.Get(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	if err := u.repo.Deactivate(ctx, id, schedule.StatusCancelled); err != nil {
		return nil, err
	}
	s.IsActive = false
	s.StatusMessage = schedule.StatusCancelled
	return s, nil
}

// Reactivate turns a paused schedule back on with a next run computed from
// now, so missed runs are not replayed.
func (u *Usecase) Reactivate(ctx context.Context, requesterID uuid.UUID, id schedule.ID) (*schedule.Schedule, error) {
	s, err := u.Get(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	next, err := u.next(s, u.clk())
	if err != nil {
		return nil, err
	}
	if err := u.repo.Reactivate(ctx, id, next); err != nil {
		return nil, err
	}
	s.IsActive = true
	s.NextRun = next
	s.FailureCount = 0
	s.LastError = ""
	s.StatusMessage = schedule.StatusReactivated
	return s, nil
}

func (u *Usecase) Logs(ctx context.Context, requesterID uuid.UUID, id schedule.ID, limit int) ([]*schedulelog.Entry, error) {
	if _, err := u.Get(ctx, requesterID, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return u.logs.ListBySchedule(ctx, id, limit)
}

// Preview returns the next n fire times of an unsaved recurrence.
func (u *Usecase) Preview(in CreateInput, n int) ([]time.Time, error) {
	s := &schedule.Schedule{
		Target:     "preview",
		Frequency:  schedule.Frequency(strings.ToLower(string(in.Frequency))),
		DayOfWeek:  in.DayOfWeek,
		DayOfMonth: in.DayOfMonth,
		TimeOfDay:  in.TimeOfDay,
		Timezone:   in.Timezone,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 5
	}
	n = min(n, maxPreview)
	r, err := nextrun.FromSchedule(s, u.loc, u.overflow)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schedule.ErrInvalid, err)
	}
	from := u.clk()
	if in.NextRun != nil {
		from = *in.NextRun
	}
	return nextrun.Upcoming(r, from, n)
}

func (u *Usecase) next(s *schedule.Schedule, now time.Time) (time.Time, error) {
	r, err := nextrun.FromSchedule(s, u.loc, u.overflow)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", schedule.ErrInvalid, err)
	}
	next, err := nextrun.Next(r, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", schedule.ErrInvalid, err)
	}
	return next.UTC(), nil
}
