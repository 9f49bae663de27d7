package models

import (
	"time"

	"github.com/lib/pq"
)

// TrainingClass is the capacity-bearing aggregate for a multi-session
// training series. CurrentEnrolled is only ever mutated through the
// class repository's seat operations.
type TrainingClass struct {
	ID              string        `db:"id" json:"id"`
	TenantID        string        `db:"tenant_id" json:"tenant_id"`
	Name            string        `db:"name" json:"name"`
	Description     string        `db:"description" json:"description,omitempty"`
	MaxCapacity     int           `db:"max_capacity" json:"max_capacity"`
	CurrentEnrolled int           `db:"current_enrolled" json:"current_enrolled"`
	PricePerSeries  float64       `db:"price_per_series" json:"price_per_series"`
	TotalSessions   int           `db:"total_sessions" json:"total_sessions"`
	StartDate       time.Time     `db:"start_date" json:"start_date"`
	TotalWeeks      int           `db:"total_weeks" json:"total_weeks"`
	DaysOfWeek      pq.Int64Array `db:"days_of_week" json:"days_of_week"`
	StartTime       string        `db:"start_time" json:"start_time"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// SeatsAvailable reports remaining capacity for display purposes only;
// admission always goes through the conditional seat reservation.
func (c *TrainingClass) SeatsAvailable() int {
	remaining := c.MaxCapacity - c.CurrentEnrolled
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ClassSession is a single dated occurrence of a training class.
// Session numbers are gapless 1..TotalSessions per class.
type ClassSession struct {
	ID              string    `db:"id" json:"id"`
	TenantID        string    `db:"tenant_id" json:"tenant_id"`
	ClassID         string    `db:"class_id" json:"class_id"`
	SessionNumber   int       `db:"session_number" json:"session_number"`
	ScheduledDate   time.Time `db:"scheduled_date" json:"scheduled_date"`
	ScheduledTime   string    `db:"scheduled_time" json:"scheduled_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
}

// ClassFilter captures filtering criteria for listing classes.
type ClassFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
