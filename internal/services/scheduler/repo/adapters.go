package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NordCoder/GetMoreSeo/internal/domain/kafka"
	"github.com/NordCoder/GetMoreSeo/internal/domain/outbox"
	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
)

// Schedules is the part of the schedule store a sweep touches.
type Schedules interface {
	ClaimDue(ctx context.Context, dueBy time.Time, limit int, ttl time.Duration) ([]*schedule.Schedule, error)
	Advance(ctx context.Context, id schedule.ID, lastRun, nextRun time.Time) error
	RecordFailure(ctx context.Context, id schedule.ID, msg string, maxFailures int) (bool, error)
	Deactivate(ctx context.Context, id schedule.ID, statusMessage string) error
}

type Transactor interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}

// NoTx runs the function directly. Used when the store has no transactions.
type NoTx struct{}

func (NoTx) WithTx(ctx context.Context, function func(ctx context.Context) error) error {
	return function(ctx)
}

type EventSink interface {
	ScheduleExecuted(ctx context.Context, ev kafka.ScheduleExecuted) error
}

// Outbox enqueues events into the transactional outbox; the outbox runner
// publishes them later.
type Outbox struct{ R outbox.Repository }

var _ EventSink = Outbox{}

func (o Outbox) ScheduleExecuted(ctx context.Context, ev kafka.ScheduleExecuted) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := fmt.Sprintf("%s:%s:%d", outbox.KindScheduleExecuted, ev.ScheduleID, ev.RanAt.Unix())
	return o.R.Enqueue(ctx, key, outbox.KindScheduleExecuted, data)
}
