package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
)

var _ schedule.Repo = (*ScheduleRepo)(nil)

type ScheduleRepo struct{ db *DB }

func NewScheduleRepo(db *DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

const scheduleCols = `id, user_id, website_url, is_active, frequency, day_of_week, day_of_month,
       time_of_day, timezone, next_run, last_run, claimed_until, failure_count, last_error,
       status_message, created_at, updated_at`

const (
	qScheduleInsert = `
INSERT INTO blog_schedules (id, user_id, website_url, is_active, frequency, day_of_week, day_of_month,
                            time_of_day, timezone, next_run, status_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING created_at, updated_at;`

	qScheduleByID = `
SELECT ` + scheduleCols + `
FROM blog_schedules
WHERE id = $1;`

	qScheduleByUser = `
SELECT ` + scheduleCols + `
FROM blog_schedules
WHERE user_id = $1
ORDER BY created_at DESC;`

	qScheduleClaimDue = `
WITH due AS (
    SELECT id
    FROM blog_schedules
    WHERE is_active
      AND next_run <= $1
      AND (claimed_until IS NULL OR claimed_until < now())
    ORDER BY next_run
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
UPDATE blog_schedules s
SET claimed_until = now() + make_interval(secs => $3),
    updated_at    = now()
FROM due
WHERE s.id = due.id
RETURNING s.id, s.user_id, s.website_url, s.is_active, s.frequency, s.day_of_week, s.day_of_month,
          s.time_of_day, s.timezone, s.next_run, s.last_run, s.claimed_until, s.failure_count,
          s.last_error, s.status_message, s.created_at, s.updated_at;`

	qScheduleAdvance = `
UPDATE blog_schedules
SET last_run      = $2,
    next_run      = $3,
    claimed_until = NULL,
    failure_count = 0,
    last_error    = '',
    updated_at    = now()
WHERE id = $1;`

	qScheduleFailure = `
UPDATE blog_schedules
SET failure_count  = failure_count + 1,
    last_error     = $2,
    claimed_until  = NULL,
    is_active      = CASE WHEN $3::int > 0 AND failure_count + 1 >= $3::int THEN FALSE ELSE is_active END,
    status_message = CASE WHEN $3::int > 0 AND failure_count + 1 >= $3::int THEN $4 ELSE status_message END,
    updated_at     = now()
WHERE id = $1
RETURNING is_active, failure_count;`

	qScheduleDeactivate = `
UPDATE blog_schedules
SET is_active      = FALSE,
    status_message = $2,
    claimed_until  = NULL,
    updated_at     = now()
WHERE id = $1;`

	qScheduleReactivate = `
UPDATE blog_schedules
SET is_active      = TRUE,
    next_run       = $2,
    failure_count  = 0,
    last_error     = '',
    status_message = $3,
    claimed_until  = NULL,
    updated_at     = now()
WHERE id = $1;`

	qScheduleStats = `
SELECT count(*) FILTER (WHERE is_active),
       count(*) FILTER (WHERE is_active AND next_run >= $1 AND next_run <= $1 + make_interval(secs => $2))
FROM blog_schedules;`
)

func scanSchedule(row pgx.Row, s *schedule.Schedule) error {
	var freq string
	var dow, dom *int16
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Target,
		&s.IsActive,
		&freq,
		&dow,
		&dom,
		&s.TimeOfDay,
		&s.Timezone,
		&s.NextRun,
		&s.LastRun,
		&s.ClaimedUntil,
		&s.FailureCount,
		&s.LastError,
		&s.StatusMessage,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return mapErr("scan schedule", err)
	}
	s.Frequency = schedule.Frequency(freq)
	s.DayOfWeek = widen(dow)
	s.DayOfMonth = widen(dom)
	return nil
}

func widen(v *int16) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

func narrow(v *int) *int16 {
	if v == nil {
		return nil
	}
	i := int16(*v)
	return &i
}

func (r *ScheduleRepo) Create(ctx context.Context, s *schedule.Schedule) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	eq := r.db.execQueryer(ctx)
	err := eq.QueryRow(ctx, qScheduleInsert,
		s.ID, s.UserID, s.Target, s.IsActive, string(s.Frequency), narrow(s.DayOfWeek), narrow(s.DayOfMonth),
		s.TimeOfDay, s.Timezone, s.NextRun, s.StatusMessage,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return mapErr("insert schedule", err)
}

func (r *ScheduleRepo) GetByID(ctx context.Context, id schedule.ID) (*schedule.Schedule, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s schedule.Schedule
	if err := scanSchedule(r.db.execQueryer(ctx).QueryRow(ctx, qScheduleByID, id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ScheduleRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*schedule.Schedule, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qScheduleByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	return collectSchedules(rows)
}

// ClaimDue locks due rows with SKIP LOCKED and stamps claimed_until in the
// same statement, so concurrent sweeps never receive the same schedule.
func (r *ScheduleRepo) ClaimDue(ctx context.Context, dueBy time.Time, limit int, ttl time.Duration) ([]*schedule.Schedule, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qScheduleClaimDue, dueBy, limit, ttl.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim due: %w", err)
	}
	return collectSchedules(rows)
}

func collectSchedules(rows pgx.Rows) ([]*schedule.Schedule, error) {
	defer rows.Close()

	var out []*schedule.Schedule
	for rows.Next() {
		var s schedule.Schedule
		if err := scanSchedule(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *ScheduleRepo) Advance(ctx context.Context, id schedule.ID, lastRun, nextRun time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qScheduleAdvance, id, lastRun, nextRun)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ScheduleRepo) RecordFailure(ctx context.Context, id schedule.ID, msg string, maxFailures int) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		active bool
		count  int
	)
	err := r.db.execQueryer(ctx).
		QueryRow(ctx, qScheduleFailure, id, msg, maxFailures, schedule.FailureStatus(maxFailures)).
		Scan(&active, &count)
	if err != nil {
		return false, mapErr("record failure", err)
	}
	return maxFailures > 0 && count >= maxFailures && !active, nil
}

func (r *ScheduleRepo) Deactivate(ctx context.Context, id schedule.ID, statusMessage string) error {
	return r.exec(ctx, "deactivate schedule", qScheduleDeactivate, id, statusMessage)
}

func (r *ScheduleRepo) Reactivate(ctx context.Context, id schedule.ID, nextRun time.Time) error {
	return r.exec(ctx, "reactivate schedule", qScheduleReactivate, id, nextRun, schedule.StatusReactivated)
}

func (r *ScheduleRepo) exec(ctx context.Context, op, q string, args ...any) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ScheduleRepo) Stats(ctx context.Context, now time.Time, horizon time.Duration) (schedule.Stats, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var st schedule.Stats
	if err := r.db.Pool.QueryRow(ctx, qScheduleStats, now, horizon.Seconds()).Scan(&st.Active, &st.Upcoming); err != nil {
		return schedule.Stats{}, fmt.Errorf("schedule stats: %w", err)
	}
	return st, nil
}
