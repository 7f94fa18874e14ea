package blog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	ScheduleID *uuid.UUID `json:"schedule_id,omitempty"`
	WebsiteURL string     `json:"website_url"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Research   string     `json:"research,omitempty"`
	Model      string     `json:"model"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Repo interface {
	Insert(ctx context.Context, p *Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*Post, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Post, error)
}
