package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/consultare/practice-api/internal/schedule"
)

// TaskStatus tracks the lifecycle of a scheduled task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusCancelled  TaskStatus = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// TaskPriority orders tasks in the practice-management views.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

// Valid reports whether p is one of the known priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ScheduledTask is a locally owned practice-management task. Tasks with a
// start and end time on their due date participate in conflict detection;
// all-day tasks (nil times) and terminal tasks are inert for overlap
// purposes.
type ScheduledTask struct {
	ID          uuid.UUID           `json:"id"`
	DoctorID    string              `json:"doctor_id"`
	Title       string              `json:"title"`
	DueDate     time.Time           `json:"-"`
	StartTime   *schedule.ClockTime `json:"start_time,omitempty"`
	EndTime     *schedule.ClockTime `json:"end_time,omitempty"`
	Status      TaskStatus          `json:"status"`
	Priority    TaskPriority        `json:"priority"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// HasTimeRange reports whether the task occupies a concrete interval.
func (t *ScheduledTask) HasTimeRange() bool {
	return t.StartTime != nil && t.EndTime != nil
}

// MarshalJSON renders DueDate in the calendar-date wire format.
func (t ScheduledTask) MarshalJSON() ([]byte, error) {
	type alias ScheduledTask
	return json.Marshal(struct {
		alias
		DueDate string `json:"due_date"`
	}{alias(t), schedule.FormatDate(t.DueDate)})
}
