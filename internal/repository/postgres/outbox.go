package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/NordCoder/GetMoreSeo/internal/domain/outbox"
)

var _ outbox.Repository = (*OutboxRepo)(nil)

// OutboxRepo stores schedule events next to the schedule update that
// produced them. Enqueue joins the caller's transaction; the runner side
// (pick/mark/purge) always uses the pool.
type OutboxRepo struct{ db *DB }

func NewOutboxRepo(db *DB) *OutboxRepo { return &OutboxRepo{db: db} }

const (
	qOutboxEnqueue = `
INSERT INTO outbox (idempotency_key, kind, data, traceparent, tracestate, baggage)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (idempotency_key) DO NOTHING`

	qOutboxClaim = `
WITH due AS (
    SELECT idempotency_key
    FROM outbox
    WHERE status = 'CREATED'
       OR (status = 'IN_PROGRESS' AND updated_at < now() - make_interval(secs => $2))
    ORDER BY created_at
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
UPDATE outbox o
SET status = 'IN_PROGRESS', attempts = o.attempts + 1, updated_at = now()
FROM due
WHERE o.idempotency_key = due.idempotency_key
RETURNING o.idempotency_key, o.kind, o.data, o.status, o.attempts,
          o.created_at, o.updated_at, o.traceparent, o.tracestate, o.baggage`

	qOutboxSetStatus = `
UPDATE outbox SET status = $2, updated_at = now()
WHERE idempotency_key = ANY($1)`

	qOutboxPurge = `
DELETE FROM outbox
WHERE status = 'SUCCESS' AND updated_at < now() - make_interval(secs => $1)`
)

func (r *OutboxRepo) Enqueue(ctx context.Context, key string, kind outbox.Kind, data []byte) error {
	tc := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, tc)

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qOutboxEnqueue, key, int(kind), data,
		tc.Get("traceparent"), tc.Get("tracestate"), tc.Get("baggage")); err != nil {
		return mapErr("enqueue "+kind.String(), err)
	}
	return nil
}

func (r *OutboxRepo) PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]outbox.Message, error) {
	if batch <= 0 {
		return nil, errors.New("batch must be > 0")
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qOutboxClaim, batch, inProgressTTL.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.Message, error) {
		var (
			m      outbox.Message
			kind   int
			status string
		)
		err := row.Scan(&m.IdempotencyKey, &kind, &m.Data, &status, &m.Attempts,
			&m.CreatedAt, &m.UpdatedAt, &m.Traceparent, &m.Tracestate, &m.Baggage)
		m.Kind, m.Status = outbox.Kind(kind), outbox.Status(status)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outbox batch: %w", err)
	}
	return msgs, nil
}

func (r *OutboxRepo) MarkSuccess(ctx context.Context, keys []string) error {
	return r.setStatus(ctx, keys, outbox.StatusSuccess)
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, keys []string) error {
	return r.setStatus(ctx, keys, outbox.StatusFailed)
}

func (r *OutboxRepo) setStatus(ctx context.Context, keys []string, st outbox.Status) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	if _, err := r.db.Pool.Exec(ctx, qOutboxSetStatus, keys, string(st)); err != nil {
		return fmt.Errorf("mark %d outbox rows %s: %w", len(keys), st, err)
	}
	return nil
}

func (r *OutboxRepo) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Pool.Exec(ctx, qOutboxPurge, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}
