package apikey

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Key struct {
	ID         int64      `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Prefix     string     `json:"prefix"`
	KeyHash    string     `json:"-"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

type Repo interface {
	Create(ctx context.Context, k *Key) error
	FindByPrefix(ctx context.Context, prefix string) (*Key, error)
	Touch(ctx context.Context, id int64, at time.Time) error
}
