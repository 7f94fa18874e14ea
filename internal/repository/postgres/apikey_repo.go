package postgres

import (
	"context"
	"time"

	"github.com/NordCoder/GetMoreSeo/internal/domain/apikey"
)

var _ apikey.Repo = (*APIKeyRepo)(nil)

type APIKeyRepo struct{ db *DB }

func NewAPIKeyRepo(db *DB) *APIKeyRepo { return &APIKeyRepo{db: db} }

const (
	qKeyInsert = `
INSERT INTO api_keys (user_id, prefix, key_hash, is_active)
VALUES ($1, $2, $3, TRUE)
RETURNING id, is_active, created_at;`

	qKeyByPrefix = `
SELECT id, user_id, prefix, key_hash, is_active, created_at, last_used_at
FROM api_keys
WHERE prefix = $1;`

	qKeyTouch = `UPDATE api_keys SET last_used_at = $2 WHERE id = $1;`
)

func (r *APIKeyRepo) Create(ctx context.Context, k *apikey.Key) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.Pool.QueryRow(ctx, qKeyInsert, k.UserID, k.Prefix, k.KeyHash).
		Scan(&k.ID, &k.IsActive, &k.CreatedAt)
	return mapErr("insert api key", err)
}

func (r *APIKeyRepo) FindByPrefix(ctx context.Context, prefix string) (*apikey.Key, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var k apikey.Key
	err := r.db.Pool.QueryRow(ctx, qKeyByPrefix, prefix).
		Scan(&k.ID, &k.UserID, &k.Prefix, &k.KeyHash, &k.IsActive, &k.CreatedAt, &k.LastUsedAt)
	if err != nil {
		return nil, mapErr("find api key", err)
	}
	return &k, nil
}

func (r *APIKeyRepo) Touch(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qKeyTouch, id, at); err != nil {
		return mapErr("touch api key", err)
	}
	return nil
}
