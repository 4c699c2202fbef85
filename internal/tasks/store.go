// Package tasks persists practice-management tasks, the local half of the
// scheduling-conflict picture.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/consultare/practice-api/internal/schedule"
)

// ErrNotFound is returned when a task does not exist for the doctor.
var ErrNotFound = errors.New("tasks: task not found")

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides CRUD operations for scheduled_tasks.
type Store struct {
	db DB
}

// NewStore creates a task store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const taskColumns = `id, doctor_id, title, due_date::text, start_time, end_time, status, priority, completed_at, created_at, updated_at`

// Create inserts a new task. Tasks either carry both clock times or neither.
func (s *Store) Create(ctx context.Context, t *ScheduledTask) error {
	if (t.StartTime == nil) != (t.EndTime == nil) {
		return fmt.Errorf("tasks: start and end time must be set together")
	}
	if t.HasTimeRange() && *t.StartTime >= *t.EndTime {
		return fmt.Errorf("tasks: start time %s must be before end time %s", *t.StartTime, *t.EndTime)
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.Exec(ctx, `
		INSERT INTO scheduled_tasks (id, doctor_id, title, due_date, start_time, end_time, status, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.DoctorID, t.Title, schedule.FormatDate(t.DueDate),
		clockToText(t.StartTime), clockToText(t.EndTime),
		string(t.Status), string(t.Priority), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("tasks: create: %w", err)
	}
	return nil
}

// Get returns a task scoped to the doctor, or nil when absent.
func (s *Store) Get(ctx context.Context, doctorID string, id uuid.UUID) (*ScheduledTask, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM scheduled_tasks
		WHERE id = $1 AND doctor_id = $2`, id, doctorID)

	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tasks: get: %w", err)
	}
	return t, nil
}

// ListForDay returns every task due on the given calendar day.
func (s *Store) ListForDay(ctx context.Context, doctorID string, date time.Time) ([]ScheduledTask, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM scheduled_tasks
		WHERE doctor_id = $1 AND due_date = $2
		ORDER BY start_time NULLS LAST, created_at ASC`,
		doctorID, schedule.FormatDate(date))
	if err != nil {
		return nil, fmt.Errorf("tasks: list for day: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListTimedForDay returns the tasks that participate in conflict detection:
// due on the day, carrying a time range, and still pending or in progress.
// excludeID removes one task's own row (editing an existing task must never
// conflict with itself).
func (s *Store) ListTimedForDay(ctx context.Context, doctorID string, date time.Time, excludeID *uuid.UUID) ([]ScheduledTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM scheduled_tasks
		WHERE doctor_id = $1 AND due_date = $2
		  AND start_time IS NOT NULL AND end_time IS NOT NULL
		  AND status IN ('PENDING', 'IN_PROGRESS')`
	args := []any{doctorID, schedule.FormatDate(date)}
	if excludeID != nil {
		query += ` AND id <> $3`
		args = append(args, *excludeID)
	}
	query += ` ORDER BY start_time ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tasks: list timed for day: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// UpdateStatus transitions a task, stamping completed_at on terminal states
// and clearing it otherwise.
func (s *Store) UpdateStatus(ctx context.Context, doctorID string, id uuid.UUID, status TaskStatus) error {
	now := time.Now().UTC()
	var completedAt *time.Time
	if status.IsTerminal() {
		completedAt = &now
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_tasks
		SET status = $1, completed_at = $2, updated_at = $3
		WHERE id = $4 AND doctor_id = $5`,
		string(status), completedAt, now, id, doctorID)
	if err != nil {
		return fmt.Errorf("tasks: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tasks: update status %s: %w", id, ErrNotFound)
	}
	return nil
}

// CancelBatch cancels every listed task owned by the doctor that is still
// pending or in progress, in a single statement. Terminal tasks are silently
// skipped. Returns the number of rows actually cancelled.
func (s *Store) CancelBatch(ctx context.Context, doctorID string, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_tasks
		SET status = 'CANCELLED', completed_at = $1, updated_at = $1
		WHERE id = ANY($2) AND doctor_id = $3 AND status IN ('PENDING', 'IN_PROGRESS')`,
		now, ids, doctorID)
	if err != nil {
		return 0, fmt.Errorf("tasks: cancel batch: %w", err)
	}
	return tag.RowsAffected(), nil
}

func clockToText(c *schedule.ClockTime) *string {
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable) (*ScheduledTask, error) {
	var t ScheduledTask
	var dueDate, status, priority string
	var startTime, endTime *string
	err := row.Scan(
		&t.ID, &t.DoctorID, &t.Title, &dueDate,
		&startTime, &endTime,
		&status, &priority,
		&t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// Read the date back through the same normalizer that wrote it.
	t.DueDate, err = schedule.ParseDate(dueDate)
	if err != nil {
		return nil, fmt.Errorf("stored due_date: %w", err)
	}
	if t.StartTime, err = textToClock(startTime); err != nil {
		return nil, fmt.Errorf("stored start_time: %w", err)
	}
	if t.EndTime, err = textToClock(endTime); err != nil {
		return nil, fmt.Errorf("stored end_time: %w", err)
	}
	t.Status = TaskStatus(status)
	t.Priority = TaskPriority(priority)
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]ScheduledTask, error) {
	var result []ScheduledTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("tasks: scan: %w", err)
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func textToClock(s *string) (*schedule.ClockTime, error) {
	if s == nil {
		return nil, nil
	}
	c, err := schedule.ParseClock(*s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
