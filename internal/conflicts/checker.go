package conflicts

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/consultare/practice-api/internal/appointments"
	"github.com/consultare/practice-api/internal/observability/metrics"
	"github.com/consultare/practice-api/internal/schedule"
	"github.com/consultare/practice-api/internal/tasks"
	"github.com/consultare/practice-api/pkg/logging"
)

var conflictsTracer = otel.Tracer("practice.internal.conflicts")

// Checker answers "does this time window collide with anything?" for one
// practitioner, merging the external slot picture with local timed tasks.
type Checker struct {
	slots   appointments.SlotAPI
	tasks   TaskDirectory
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
}

// NewChecker constructs a conflict checker.
func NewChecker(slots appointments.SlotAPI, taskDir TaskDirectory, logger *logging.Logger, m *metrics.SchedulingMetrics) *Checker {
	if slots == nil {
		panic("conflicts: slot API required")
	}
	if taskDir == nil {
		panic("conflicts: task directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Checker{slots: slots, tasks: taskDir, logger: logger, metrics: m}
}

// Check runs a single-window conflict check. The slot fetch and the task
// query are independent and run concurrently; a failure on either side
// degrades that side to empty and raises its failure flag rather than
// failing the whole check.
func (c *Checker) Check(ctx context.Context, doctorID string, window schedule.TimeWindow, excludeTaskID *uuid.UUID) (*Result, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	ctx, span := conflictsTracer.Start(ctx, "conflicts.check")
	defer span.End()
	span.SetAttributes(
		attribute.String("practice.doctor_id", doctorID),
		attribute.String("practice.date", schedule.FormatDate(window.Date)),
	)

	result := &Result{
		AppointmentConflicts: []appointments.SlotRef{},
		TaskConflicts:        []tasks.ScheduledTask{},
	}

	var (
		wg       sync.WaitGroup
		daySlots []appointments.SlotRef
		dayTasks []tasks.ScheduledTask
		slotsErr error
		tasksErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		daySlots, slotsErr = c.slots.ListSlots(ctx, doctorID, window.Date)
	}()
	go func() {
		defer wg.Done()
		dayTasks, tasksErr = c.tasks.ListTimedForDay(ctx, doctorID, window.Date, excludeTaskID)
	}()
	wg.Wait()

	if slotsErr != nil {
		// Degrade to "unknown" instead of reporting a false all-clear.
		c.logger.Warn("appointment slot lookup failed, degrading conflict check",
			"doctor_id", doctorID, "date", schedule.FormatDate(window.Date), "error", slotsErr)
		c.metrics.ObserveCheckFailure("appointments")
		result.AppointmentCheckFailed = true
	} else {
		for _, slot := range daySlots {
			// A BLOCKED slot is already a deliberate hold; it cannot conflict.
			if slot.Status != appointments.StatusAvailable && slot.Status != appointments.StatusBooked {
				continue
			}
			if !window.OverlapsWindow(slot.StartTime, slot.EndTime) {
				continue
			}
			result.AppointmentConflicts = append(result.AppointmentConflicts, slot)
			if slot.Status == appointments.StatusBooked {
				result.HasBookedAppointments = true
			}
		}
	}

	if tasksErr != nil {
		c.logger.Warn("task lookup failed, degrading conflict check",
			"doctor_id", doctorID, "date", schedule.FormatDate(window.Date), "error", tasksErr)
		c.metrics.ObserveCheckFailure("tasks")
		result.TaskCheckFailed = true
	} else {
		for _, task := range dayTasks {
			if !task.HasTimeRange() {
				continue
			}
			if window.OverlapsWindow(*task.StartTime, *task.EndTime) {
				result.TaskConflicts = append(result.TaskConflicts, task)
			}
		}
	}

	switch {
	case result.Degraded():
		c.metrics.ObserveCheck("degraded")
	case result.HasConflicts():
		c.metrics.ObserveCheck("conflicts")
	default:
		c.metrics.ObserveCheck("clear")
	}
	return result, nil
}

// CheckBatch checks each entry independently; entries are not checked
// against each other. Results come back in input order regardless of
// completion order. Every window is validated before any I/O starts.
func (c *Checker) CheckBatch(ctx context.Context, doctorID string, entries []BatchEntry) ([]IndexedResult, error) {
	for i, e := range entries {
		if err := e.Window.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	ctx, span := conflictsTracer.Start(ctx, "conflicts.check_batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("practice.doctor_id", doctorID),
		attribute.Int("practice.batch_size", len(entries)),
	)

	results := make([]IndexedResult, len(entries))
	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e BatchEntry) {
			defer wg.Done()
			res, err := c.Check(ctx, doctorID, e.Window, e.ExcludeTaskID)
			if err != nil {
				// Windows were validated up front; a late error means a
				// cancelled context. Report it as a fully degraded result.
				res = &Result{
					AppointmentConflicts:   []appointments.SlotRef{},
					TaskConflicts:          []tasks.ScheduledTask{},
					AppointmentCheckFailed: true,
					TaskCheckFailed:        true,
				}
			}
			results[i] = IndexedResult{Index: i, Result: res}
		}(i, e)
	}
	wg.Wait()
	return results, nil
}
