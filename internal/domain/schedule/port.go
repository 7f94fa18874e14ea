package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repo interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id ID) (*Schedule, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Schedule, error)

	// ClaimDue returns active schedules with next_run <= dueBy that are not
	// claimed by another sweep, stamping claimed_until = now + ttl on each.
	ClaimDue(ctx context.Context, dueBy time.Time, limit int, ttl time.Duration) ([]*Schedule, error)
	// Advance records a successful run and releases the claim.
	Advance(ctx context.Context, id ID, lastRun, nextRun time.Time) error
	// RecordFailure keeps next_run/last_run, bumps failure_count and releases
	// the claim. When maxFailures > 0 and the count reaches it, the schedule is
	// deactivated and deactivated is true.
	RecordFailure(ctx context.Context, id ID, msg string, maxFailures int) (deactivated bool, err error)
	Deactivate(ctx context.Context, id ID, statusMessage string) error
	Reactivate(ctx context.Context, id ID, nextRun time.Time) error

	Stats(ctx context.Context, now time.Time, horizon time.Duration) (Stats, error)
}

// RunResult identifies what a successful job produced.
type RunResult struct {
	ResultID uuid.UUID
}

// JobRunner performs the work a schedule stands for. It owns its own
// timeouts; callers never cancel a started run.
type JobRunner interface {
	Run(ctx context.Context, s *Schedule) (RunResult, error)
}
