package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/GetMoreSeo/internal/domain/credit"
)

var _ credit.Store = (*CreditRepo)(nil)

type CreditRepo struct{ db *DB }

func NewCreditRepo(db *DB) *CreditRepo { return &CreditRepo{db: db} }

const (
	qCreditAvailable = `SELECT credits_available FROM subscriptions WHERE user_id = $1;`

	qCreditDeduct = `
UPDATE subscriptions
SET credits_available = credits_available - $2,
    updated_at        = now()
WHERE user_id = $1 AND credits_available >= $2;`

	qCreditGrant = `
INSERT INTO subscriptions (user_id, credits_available)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE
SET credits_available = subscriptions.credits_available + EXCLUDED.credits_available,
    updated_at        = now()
RETURNING credits_available;`
)

func (r *CreditRepo) Available(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var n int
	err := r.db.execQueryer(ctx).QueryRow(ctx, qCreditAvailable, userID).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("credits available: %w", err)
	}
	return n, nil
}

func (r *CreditRepo) Deduct(ctx context.Context, userID uuid.UUID, n int) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qCreditDeduct, userID, n)
	if err != nil {
		return fmt.Errorf("deduct credits: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return credit.ErrInsufficient
	}
	return nil
}

// Grant adds n credits, creating the subscription row when missing, and
// returns the new balance.
func (r *CreditRepo) Grant(ctx context.Context, userID uuid.UUID, n int) (int, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qCreditGrant, userID, n).Scan(&total); err != nil {
		return 0, mapErr("grant credits", err)
	}
	return total, nil
}
