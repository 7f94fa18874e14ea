// Package outbox holds the transactional outbox model. Rows are written in
// the same transaction as the state change they announce and drained into
// Kafka by a separate runner.
package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	// StatusFailed rows exhausted their attempts and are no longer picked.
	StatusFailed Status = "FAILED"
)

type Kind int

const (
	KindScheduleExecuted Kind = 1
)

func (k Kind) String() string {
	if k == KindScheduleExecuted {
		return "schedule_executed"
	}
	return "unknown"
}

// Message is one outbox row. The trace fields carry the W3C context of the
// transaction that enqueued it so delivery joins the same trace.
type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	Attempts       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Traceparent    string
	Tracestate     string
	Baggage        string
}

type Repository interface {
	// Enqueue stores the message together with the trace context carried by
	// ctx. A duplicate key is ignored.
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error
	// PickBatch claims up to batch CREATED rows, plus IN_PROGRESS rows whose
	// claim is older than inProgressTTL, and bumps their attempt counter.
	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)
	MarkSuccess(ctx context.Context, keys []string) error
	MarkFailed(ctx context.Context, keys []string) error
	// Purge deletes delivered rows last touched before olderThan ago.
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
