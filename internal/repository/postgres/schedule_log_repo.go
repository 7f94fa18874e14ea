package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/NordCoder/GetMoreSeo/internal/domain/schedulelog"
)

var _ schedulelog.Repo = (*ScheduleLogRepo)(nil)

type ScheduleLogRepo struct{ db *DB }

func NewScheduleLogRepo(db *DB) *ScheduleLogRepo { return &ScheduleLogRepo{db: db} }

const (
	qLogInsert = `
INSERT INTO schedule_logs (schedule_id, user_id, status, message, blog_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at;`

	qLogBySchedule = `
SELECT id, schedule_id, user_id, status, message, blog_id, created_at
FROM schedule_logs
WHERE schedule_id = $1
ORDER BY created_at DESC
LIMIT $2;`
)

func (r *ScheduleLogRepo) Insert(ctx context.Context, e *schedulelog.Entry) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).
		QueryRow(ctx, qLogInsert, e.ScheduleID, e.UserID, string(e.Status), e.Message, e.BlogID).
		Scan(&e.ID, &e.CreatedAt)
	return mapErr("insert schedule log", err)
}

func (r *ScheduleLogRepo) ListBySchedule(ctx context.Context, scheduleID uuid.UUID, limit int) ([]*schedulelog.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qLogBySchedule, scheduleID, limit)
	if err != nil {
		return nil, fmt.Errorf("query schedule logs: %w", err)
	}
	defer rows.Close()

	out := make([]*schedulelog.Entry, 0, limit)
	for rows.Next() {
		var (
			e      schedulelog.Entry
			status string
		)
		if err := rows.Scan(&e.ID, &e.ScheduleID, &e.UserID, &status, &e.Message, &e.BlogID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan schedule log: %w", err)
		}
		e.Status = schedulelog.Status(status)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
