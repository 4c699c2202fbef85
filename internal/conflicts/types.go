// Package conflicts implements appointment/task conflict detection and the
// override coordinator that resolves conflicts across the external
// scheduling service and the local task store.
package conflicts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/consultare/practice-api/internal/appointments"
	"github.com/consultare/practice-api/internal/schedule"
	"github.com/consultare/practice-api/internal/tasks"
)

// TaskDirectory is the slice of the task store the checker reads.
type TaskDirectory interface {
	ListTimedForDay(ctx context.Context, doctorID string, date time.Time, excludeID *uuid.UUID) ([]tasks.ScheduledTask, error)
}

// TaskCanceller is the slice of the task store the overrider mutates.
type TaskCanceller interface {
	CancelBatch(ctx context.Context, doctorID string, ids []uuid.UUID) (int64, error)
}

// Result is the outcome of a single conflict check. It is computed fresh on
// every call and never cached. A true failure flag means that data source
// could not be consulted and its conflict list degraded to empty — callers
// must surface that instead of presenting a clean result.
type Result struct {
	AppointmentConflicts   []appointments.SlotRef `json:"appointment_conflicts"`
	TaskConflicts          []tasks.ScheduledTask  `json:"task_conflicts"`
	HasBookedAppointments  bool                   `json:"has_booked_appointments"`
	AppointmentCheckFailed bool                   `json:"appointment_check_failed"`
	TaskCheckFailed        bool                   `json:"task_check_failed"`
}

// HasConflicts reports whether any overlapping slot or task survived the
// filters.
func (r *Result) HasConflicts() bool {
	return len(r.AppointmentConflicts) > 0 || len(r.TaskConflicts) > 0
}

// Degraded reports whether either data source failed.
func (r *Result) Degraded() bool {
	return r.AppointmentCheckFailed || r.TaskCheckFailed
}

// BatchEntry is one window in a batch check. ExcludeTaskID carries the
// task being edited, if any, so an entry never conflicts with its own task.
type BatchEntry struct {
	Window        schedule.TimeWindow
	ExcludeTaskID *uuid.UUID
}

// IndexedResult tags a batch-check result with the index of the window that
// produced it, so callers can correlate regardless of completion order.
type IndexedResult struct {
	Index  int     `json:"index"`
	Result *Result `json:"result"`
}

// Outcome reports what an override actually applied.
type Outcome struct {
	CancelledTasks int64 `json:"cancelled_tasks"`
	BlockedSlots   int   `json:"blocked_slots"`
}

// ErrDoctorBusy signals that another override holds the doctor's lease.
var ErrDoctorBusy = errors.New("conflicts: another override is in progress for this doctor")

// ErrEmptyOverride signals a request with nothing to apply.
var ErrEmptyOverride = errors.New("conflicts: override needs at least one task to cancel or slot to block")

// PartialBlockError is returned when one or more slot-block calls failed.
// Slots that did block were reset best-effort and no task was cancelled, so
// the caller can retry the named slots from a clean state.
type PartialBlockError struct {
	FailedSlots []string
}

func (e *PartialBlockError) Error() string {
	return fmt.Sprintf("conflicts: failed to block slots %s; no tasks were cancelled", strings.Join(e.FailedSlots, ", "))
}

// CancelFailedError is returned when the local task cancellation failed
// after every slot block succeeded. The slot holds are left in place, so the
// caller can retry the cancellation without re-blocking.
type CancelFailedError struct {
	BlockedSlots int
	Err          error
}

func (e *CancelFailedError) Error() string {
	return fmt.Sprintf("conflicts: task cancellation failed with %d slots blocked; holds remain in place: %v", e.BlockedSlots, e.Err)
}

func (e *CancelFailedError) Unwrap() error { return e.Err }
