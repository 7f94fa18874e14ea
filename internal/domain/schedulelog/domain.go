package schedulelog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

type Entry struct {
	ID         int64      `json:"id"`
	ScheduleID uuid.UUID  `json:"schedule_id"`
	UserID     uuid.UUID  `json:"user_id"`
	Status     Status     `json:"status"`
	Message    string     `json:"message,omitempty"`
	BlogID     *uuid.UUID `json:"blog_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Repo interface {
	Insert(ctx context.Context, e *Entry) error
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID, limit int) ([]*Entry, error)
}
