package service

import (
	"sort"
	"time"

	appErrors "github.com/pawhaven/petclass-api/pkg/errors"

	"github.com/pawhaven/petclass-api/internal/models"
)

// ScheduleSpec describes a weekly-recurring session plan for a class.
// DaysOfWeek uses Go weekday ordinals (0 = Sunday .. 6 = Saturday).
type ScheduleSpec struct {
	StartDate       time.Time
	TotalWeeks      int
	DaysOfWeek      []int
	StartTime       string
	DurationMinutes int
}

// GenerateSessions expands a weekly recurrence into an ordered, gapless
// session list numbered 1..(TotalWeeks x len(DaysOfWeek)). It is a pure
// computation; persisting the batch is the caller's concern.
func GenerateSessions(tenantID, classID string, spec ScheduleSpec) ([]models.ClassSession, error) {
	if spec.TotalWeeks <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "total weeks must be positive")
	}
	if len(spec.DaysOfWeek) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one day of week is required")
	}
	if spec.DurationMinutes <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session duration must be positive")
	}

	seen := make(map[int]bool, len(spec.DaysOfWeek))
	offsets := make([]int, 0, len(spec.DaysOfWeek))
	startWeekday := int(spec.StartDate.Weekday())
	for _, day := range spec.DaysOfWeek {
		if day < 0 || day > 6 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "day of week must be between 0 and 6")
		}
		if seen[day] {
			continue
		}
		seen[day] = true
		offsets = append(offsets, (day-startWeekday+7)%7)
	}
	// Within a week, sessions run in calendar order from the start date.
	sort.Ints(offsets)

	start := time.Date(spec.StartDate.Year(), spec.StartDate.Month(), spec.StartDate.Day(), 0, 0, 0, 0, time.UTC)
	sessions := make([]models.ClassSession, 0, spec.TotalWeeks*len(offsets))
	number := 1
	for week := 0; week < spec.TotalWeeks; week++ {
		for _, offset := range offsets {
			sessions = append(sessions, models.ClassSession{
				TenantID:        tenantID,
				ClassID:         classID,
				SessionNumber:   number,
				ScheduledDate:   start.AddDate(0, 0, week*7+offset),
				ScheduledTime:   spec.StartTime,
				DurationMinutes: spec.DurationMinutes,
			})
			number++
		}
	}
	return sessions, nil
}
