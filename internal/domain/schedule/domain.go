package schedule

import (
	"time"

	"github.com/google/uuid"
)

type ID = uuid.UUID

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

type Schedule struct {
	ID            ID         `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Target        string     `json:"website_url"`
	IsActive      bool       `json:"is_active"`
	Frequency     Frequency  `json:"frequency"`
	DayOfWeek     *int       `json:"day_of_week,omitempty"`
	DayOfMonth    *int       `json:"day_of_month,omitempty"`
	TimeOfDay     string     `json:"time_of_day"`
	Timezone      string     `json:"timezone,omitempty"`
	NextRun       time.Time  `json:"next_run"`
	LastRun       *time.Time `json:"last_run,omitempty"`
	ClaimedUntil  *time.Time `json:"-"`
	FailureCount  int        `json:"failure_count"`
	LastError     string     `json:"last_error,omitempty"`
	StatusMessage string     `json:"status_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Due reports whether s should fire at or before at.
func (s *Schedule) Due(at time.Time) bool {
	return s.IsActive && !s.NextRun.After(at)
}

// Stats are the counters exposed by the cron health endpoint.
type Stats struct {
	Active   int `json:"active_schedules"`
	Upcoming int `json:"upcoming_schedules"`
}

const (
	StatusCancelled      = "Cancelled by user"
	StatusNoCredits      = "Paused due to insufficient credits"
	StatusReactivated    = "Reactivated by user"
	statusFailedTemplate = "Paused after %d consecutive failures"
)
