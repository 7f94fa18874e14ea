package credit

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrInsufficient = errors.New("insufficient credits")

// Store tracks generation credits per user. A user without a subscription row
// has zero credits.
type Store interface {
	Available(ctx context.Context, userID uuid.UUID) (int, error)
	// Deduct removes n credits, failing with ErrInsufficient instead of going negative.
	Deduct(ctx context.Context, userID uuid.UUID, n int) error
}
