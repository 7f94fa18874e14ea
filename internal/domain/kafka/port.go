package kafka

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ScheduleExecuted struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	UserID     uuid.UUID `json:"user_id"`
	BlogID     uuid.UUID `json:"blog_id"`
	Target     string    `json:"website_url"`
	RanAt      time.Time `json:"ran_at"`
	NextRun    time.Time `json:"next_run"`
}

type ScheduleEvents interface {
	PublishScheduleExecuted(ctx context.Context, ev ScheduleExecuted) error
}
