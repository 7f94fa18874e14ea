package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/GetMoreSeo/internal/domain/credit"
	"github.com/NordCoder/GetMoreSeo/internal/domain/kafka"
	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
	"github.com/NordCoder/GetMoreSeo/internal/domain/schedulelog"
)

type fakeStore struct {
	mu    sync.Mutex
	now   func() time.Time
	rows  map[uuid.UUID]*schedule.Schedule
	order []uuid.UUID

	claimErr   error
	advanceErr error
}

func newFakeStore(now func() time.Time, ss ...*schedule.Schedule) *fakeStore {
	f := &fakeStore{now: now, rows: map[uuid.UUID]*schedule.Schedule{}}
	for _, s := range ss {
		cp := *s
		f.rows[s.ID] = &cp
		f.order = append(f.order, s.ID)
	}
	return f
}

func (f *fakeStore) get(id uuid.UUID) schedule.Schedule {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

func (f *fakeStore) ClaimDue(_ context.Context, dueBy time.Time, limit int, ttl time.Duration) ([]*schedule.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	now := f.now()
	var out []*schedule.Schedule
	for _, id := range f.order {
		s := f.rows[id]
		if !s.IsActive || s.NextRun.After(dueBy) {
			continue
		}
		if s.ClaimedUntil != nil && !s.ClaimedUntil.Before(now) {
			continue
		}
		until := now.Add(ttl)
		s.ClaimedUntil = &until
		cp := *s
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) Advance(_ context.Context, id schedule.ID, lastRun, nextRun time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.advanceErr != nil {
		return f.advanceErr
	}
	s := f.rows[id]
	s.LastRun = &lastRun
	s.NextRun = nextRun
	s.ClaimedUntil = nil
	s.FailureCount = 0
	s.LastError = ""
	return nil
}

func (f *fakeStore) RecordFailure(_ context.Context, id schedule.ID, msg string, maxFailures int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.rows[id]
	s.FailureCount++
	s.LastError = msg
	s.ClaimedUntil = nil
	if maxFailures > 0 && s.FailureCount >= maxFailures {
		s.IsActive = false
		s.StatusMessage = schedule.FailureStatus(maxFailures)
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) Deactivate(_ context.Context, id schedule.ID, statusMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.rows[id]
	s.IsActive = false
	s.StatusMessage = statusMessage
	s.ClaimedUntil = nil
	return nil
}

type runFunc func(ctx context.Context, s *schedule.Schedule) (schedule.RunResult, error)

func (f runFunc) Run(ctx context.Context, s *schedule.Schedule) (schedule.RunResult, error) {
	return f(ctx, s)
}

// countingRunner fails for targets listed in fail and succeeds otherwise.
type countingRunner struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newCountingRunner(fail ...string) *countingRunner {
	r := &countingRunner{calls: map[string]int{}, fail: map[string]bool{}}
	for _, t := range fail {
		r.fail[t] = true
	}
	return r
}

func (r *countingRunner) Run(_ context.Context, s *schedule.Schedule) (schedule.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[s.Target]++
	if r.fail[s.Target] {
		return schedule.RunResult{}, errors.New("generation failed for " + s.Target)
	}
	return schedule.RunResult{ResultID: uuid.New()}, nil
}

func (r *countingRunner) count(target string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[target]
}

type fakeCredits struct {
	mu      sync.Mutex
	balance map[uuid.UUID]int
}

func (c *fakeCredits) Available(_ context.Context, userID uuid.UUID) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance[userID], nil
}

func (c *fakeCredits) Deduct(_ context.Context, userID uuid.UUID, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balance[userID] < n {
		return credit.ErrInsufficient
	}
	c.balance[userID] -= n
	return nil
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []schedulelog.Entry
}

func (l *fakeLogs) Insert(_ context.Context, e *schedulelog.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *e)
	return nil
}

func (l *fakeLogs) ListBySchedule(_ context.Context, id uuid.UUID, _ int) ([]*schedulelog.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*schedulelog.Entry
	for i := range l.entries {
		if l.entries[i].ScheduleID == id {
			e := l.entries[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []kafka.ScheduleExecuted
}

func (e *fakeEvents) ScheduleExecuted(_ context.Context, ev kafka.ScheduleExecuted) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}
