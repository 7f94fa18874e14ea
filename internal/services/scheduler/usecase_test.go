package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
	"github.com/NordCoder/GetMoreSeo/internal/domain/schedulelog"
	"github.com/NordCoder/GetMoreSeo/internal/nextrun"
)

var sweepAt = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func daily(target string, nextRun time.Time) *schedule.Schedule {
	return &schedule.Schedule{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Target:    target,
		IsActive:  true,
		Frequency: schedule.Daily,
		TimeOfDay: "09:00",
		NextRun:   nextRun,
	}
}

func newTestUC(store *fakeStore, runner schedule.JobRunner, opts Options) *Usecase {
	uc := NewUC(store, runner, nil, opts, nil)
	uc.Now = func() time.Time { return sweepAt }
	return uc
}

func fixedClock() time.Time { return sweepAt }

func TestSweepIsolatesJobFailures(t *testing.T) {
	due := sweepAt.Add(-time.Hour)
	s1, s2, s3 := daily("https://one.example", due), daily("https://two.example", due), daily("https://three.example", due)
	store := newFakeStore(fixedClock, s1, s2, s3)
	runner := newCountingRunner("https://two.example")
	logs := &fakeLogs{}

	uc := newTestUC(store, runner, Options{})
	uc.Logs = logs

	rep, err := uc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Considered)
	assert.Equal(t, 2, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)
	assert.Zero(t, rep.PartialFailed)
	require.Len(t, rep.Outcomes, 3)

	want := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	for _, s := range []*schedule.Schedule{s1, s3} {
		got := store.get(s.ID)
		assert.Equal(t, want, got.NextRun)
		require.NotNil(t, got.LastRun)
		assert.Equal(t, sweepAt, *got.LastRun)
		assert.Nil(t, got.ClaimedUntil)
	}

	failed := store.get(s2.ID)
	assert.Equal(t, due, failed.NextRun)
	assert.Nil(t, failed.LastRun)
	assert.Nil(t, failed.ClaimedUntil)
	assert.Equal(t, 1, failed.FailureCount)
	assert.Contains(t, failed.LastError, "generation failed")
	assert.True(t, failed.IsActive)

	assert.Equal(t, OutcomeSuccess, rep.Outcomes[0].Status)
	require.NotNil(t, rep.Outcomes[0].NextRun)
	assert.Equal(t, want, *rep.Outcomes[0].NextRun)
	assert.NotNil(t, rep.Outcomes[0].ResultID)
	assert.Equal(t, OutcomeFailed, rep.Outcomes[1].Status)
	assert.Equal(t, "https://two.example", rep.Outcomes[1].Target)
	assert.Contains(t, rep.Outcomes[1].Error, "generation failed")
	assert.Equal(t, OutcomeSuccess, rep.Outcomes[2].Status)

	var statuses []schedulelog.Status
	for _, e := range logs.entries {
		statuses = append(statuses, e.Status)
	}
	assert.ElementsMatch(t, []schedulelog.Status{
		schedulelog.StatusSuccess, schedulelog.StatusFailed, schedulelog.StatusSuccess,
	}, statuses)
}

func TestSweepNothingDue(t *testing.T) {
	store := newFakeStore(fixedClock, daily("https://later.example", sweepAt.Add(time.Hour)))
	runner := newCountingRunner()

	rep, err := newTestUC(store, runner, Options{}).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Considered)
	assert.Equal(t, noSchedulesMessage, rep.Message)
	assert.Empty(t, rep.Outcomes)
	assert.Zero(t, runner.count("https://later.example"))
}

func TestSweepLookahead(t *testing.T) {
	store := newFakeStore(fixedClock, daily("https://soon.example", sweepAt.Add(3*time.Minute)))
	runner := newCountingRunner()

	rep, err := newTestUC(store, runner, Options{Lookahead: 5 * time.Minute}).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, runner.count("https://soon.example"))
}

func TestSweepLookaheadAdvancesPastClaimedSlot(t *testing.T) {
	slot := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s := daily("https://early.example", slot)

	var mu sync.Mutex
	clock := slot.Add(-3 * time.Minute)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	store := newFakeStore(now, s)
	runner := newCountingRunner()
	uc := NewUC(store, runner, nil, Options{Lookahead: 5 * time.Minute}, nil)
	uc.Now = now

	rep, err := uc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, slot.AddDate(0, 0, 1), store.get(s.ID).NextRun)

	mu.Lock()
	clock = slot.Add(-2 * time.Minute)
	mu.Unlock()
	rep, err = uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Considered)
	assert.Equal(t, 1, runner.count("https://early.example"))
}

func TestSweepClaimError(t *testing.T) {
	store := newFakeStore(fixedClock)
	store.claimErr = errors.New("connection refused")

	rep, err := newTestUC(store, newCountingRunner(), Options{}).Sweep(context.Background())
	require.Error(t, err)
	assert.Nil(t, rep)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestOverlappingSweepsDoNotDoubleFire(t *testing.T) {
	s := daily("https://slow.example", sweepAt.Add(-time.Minute))
	store := newFakeStore(fixedClock, s)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	runner := runFunc(func(ctx context.Context, _ *schedule.Schedule) (schedule.RunResult, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		return schedule.RunResult{ResultID: uuid.New()}, nil
	})
	uc := newTestUC(store, runner, Options{})

	first := make(chan *Report, 1)
	go func() {
		rep, err := uc.Sweep(context.Background())
		assert.NoError(t, err)
		first <- rep
	}()
	<-started

	second, err := uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Considered)

	close(release)
	rep := <-first
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, calls)
}

func TestSweepAdvanceFailureIsPartial(t *testing.T) {
	s := daily("https://one.example", sweepAt.Add(-time.Minute))
	store := newFakeStore(fixedClock, s)
	store.advanceErr = errors.New("deadlock detected")
	logs := &fakeLogs{}
	events := &fakeEvents{}

	uc := newTestUC(store, newCountingRunner(), Options{})
	uc.Logs = logs
	uc.Events = events

	rep, err := uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Succeeded)
	assert.Zero(t, rep.Failed)
	assert.Equal(t, 1, rep.PartialFailed)

	o := rep.Outcomes[0]
	assert.Equal(t, OutcomeAdvanceFailed, o.Status)
	assert.NotNil(t, o.ResultID)
	assert.Contains(t, o.Error, "deadlock detected")

	got := store.get(s.ID)
	assert.Zero(t, got.FailureCount)
	assert.Equal(t, s.NextRun, got.NextRun)
	assert.Empty(t, logs.entries)
	assert.Empty(t, events.events)
}

func TestSweepPausesWithoutCredits(t *testing.T) {
	broke := daily("https://broke.example", sweepAt.Add(-time.Minute))
	rich := daily("https://rich.example", sweepAt.Add(-time.Minute))
	store := newFakeStore(fixedClock, broke, rich)
	runner := newCountingRunner()
	credits := &fakeCredits{balance: map[uuid.UUID]int{rich.UserID: 3}}
	events := &fakeEvents{}

	uc := newTestUC(store, runner, Options{})
	uc.Credits = credits
	uc.Events = events

	rep, err := uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)

	assert.Equal(t, OutcomeNoCredits, rep.Outcomes[0].Status)
	assert.True(t, rep.Outcomes[0].Deactivated)
	assert.Zero(t, runner.count("https://broke.example"))

	paused := store.get(broke.ID)
	assert.False(t, paused.IsActive)
	assert.Equal(t, schedule.StatusNoCredits, paused.StatusMessage)

	assert.Equal(t, 2, credits.balance[rich.UserID])
	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, rich.ID, ev.ScheduleID)
	assert.Equal(t, rich.UserID, ev.UserID)
	assert.Equal(t, *rep.Outcomes[1].ResultID, ev.BlogID)
	assert.Equal(t, sweepAt, ev.RanAt)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), ev.NextRun)
}

func TestSweepDeactivatesAfterMaxFailures(t *testing.T) {
	s := daily("https://broken.example", sweepAt.Add(-time.Minute))
	store := newFakeStore(fixedClock, s)
	runner := newCountingRunner("https://broken.example")
	uc := newTestUC(store, runner, Options{MaxFailures: 2})

	rep, err := uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Outcomes[0].Deactivated)

	rep, err = uc.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Outcomes, 1)
	assert.True(t, rep.Outcomes[0].Deactivated)

	got := store.get(s.ID)
	assert.False(t, got.IsActive)
	assert.Equal(t, 2, got.FailureCount)
	assert.Equal(t, schedule.FailureStatus(2), got.StatusMessage)

	rep, err = uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Considered)
	assert.Equal(t, 2, runner.count("https://broken.example"))
}

func TestSweepInvalidRecurrenceSkipsJob(t *testing.T) {
	s := daily("https://bad.example", sweepAt.Add(-time.Minute))
	s.TimeOfDay = "9 o'clock"
	store := newFakeStore(fixedClock, s)
	runner := newCountingRunner()

	rep, err := newTestUC(store, runner, Options{}).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Contains(t, rep.Outcomes[0].Error, nextrun.ErrInvalidTimeOfDay.Error())
	assert.Zero(t, runner.count("https://bad.example"))
	assert.Equal(t, 1, store.get(s.ID).FailureCount)
}

func TestSweepUsesScheduleTimezone(t *testing.T) {
	s := daily("https://tz.example", sweepAt.Add(-time.Minute))
	s.Timezone = "Asia/Tokyo"
	store := newFakeStore(fixedClock, s)

	rep, err := newTestUC(store, newCountingRunner(), Options{}).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rep.Succeeded)

	// 10:00 UTC is 19:00 in Tokyo; the next 09:00 there is 00:00 UTC on Jan 2.
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), store.get(s.ID).NextRun.UTC())
}

func TestSweepJobsRunConcurrently(t *testing.T) {
	const n = 4
	var ss []*schedule.Schedule
	for i := 0; i < n; i++ {
		ss = append(ss, daily("https://site"+string(rune('a'+i))+".example", sweepAt.Add(-time.Minute)))
	}
	store := newFakeStore(fixedClock, ss...)

	var wg sync.WaitGroup
	wg.Add(n)
	runner := runFunc(func(ctx context.Context, _ *schedule.Schedule) (schedule.RunResult, error) {
		wg.Done()
		// every job waits for all others to start
		wg.Wait()
		return schedule.RunResult{ResultID: uuid.New()}, nil
	})

	done := make(chan *Report, 1)
	go func() {
		rep, _ := newTestUC(store, runner, Options{}).Sweep(context.Background())
		done <- rep
	}()

	select {
	case rep := <-done:
		assert.Equal(t, n, rep.Succeeded)
	case <-time.After(5 * time.Second):
		t.Fatal("jobs did not run concurrently")
	}
}

func TestSweepIgnoresCallerCancellation(t *testing.T) {
	s := daily("https://one.example", sweepAt.Add(-time.Minute))
	store := newFakeStore(fixedClock, s)

	ctx, cancel := context.WithCancel(context.Background())
	runner := runFunc(func(ctx context.Context, _ *schedule.Schedule) (schedule.RunResult, error) {
		cancel()
		if err := ctx.Err(); err != nil {
			return schedule.RunResult{}, err
		}
		return schedule.RunResult{ResultID: uuid.New()}, nil
	})

	rep, err := newTestUC(store, runner, Options{}).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
}
