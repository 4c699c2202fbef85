package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/consultare/practice-api/internal/schedule"
)

func clockPtr(c schedule.ClockTime) *schedule.ClockTime { return &c }

func TestCreateValidatesTimeRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	due, _ := schedule.ParseDate("2026-03-15")

	task := &ScheduledTask{DoctorID: "doc-1", Title: "call lab", DueDate: due, StartTime: clockPtr(600)}
	if err := store.Create(context.Background(), task); err == nil {
		t.Fatal("expected error when only start time is set")
	}

	task = &ScheduledTask{DoctorID: "doc-1", Title: "call lab", DueDate: due, StartTime: clockPtr(600), EndTime: clockPtr(540)}
	if err := store.Create(context.Background(), task); err == nil {
		t.Fatal("expected error for inverted time range")
	}
}

func TestCreateDefaultsAndPersists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	due, _ := schedule.ParseDate("2026-03-15")
	task := &ScheduledTask{DoctorID: "doc-1", Title: "review charts", DueDate: due}

	mock.ExpectExec("INSERT INTO scheduled_tasks").
		WithArgs(pgxmock.AnyArg(), "doc-1", "review charts", "2026-03-15",
			(*string)(nil), (*string)(nil), "PENDING", "MEDIUM", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.Create(context.Background(), task); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if task.ID == uuid.Nil {
		t.Error("expected generated task ID")
	}
	if task.Status != StatusPending || task.Priority != PriorityMedium {
		t.Errorf("expected defaults, got %s/%s", task.Status, task.Priority)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListTimedForDayExcludesTask(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	excluded := uuid.New()
	kept := uuid.New()
	now := time.Now().UTC()
	start := "09:00"
	end := "10:00"

	rows := pgxmock.NewRows([]string{
		"id", "doctor_id", "title", "due_date", "start_time", "end_time",
		"status", "priority", "completed_at", "created_at", "updated_at",
	}).AddRow(kept, "doc-1", "follow-up call", "2026-03-15", &start, &end,
		"PENDING", "HIGH", (*time.Time)(nil), now, now)

	mock.ExpectQuery("FROM scheduled_tasks").
		WithArgs("doc-1", "2026-03-15", excluded).
		WillReturnRows(rows)

	due, _ := schedule.ParseDate("2026-03-15")
	got, err := store.ListTimedForDay(context.Background(), "doc-1", due, &excluded)
	if err != nil {
		t.Fatalf("list timed for day failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != kept {
		t.Fatalf("unexpected tasks: %#v", got)
	}
	if got[0].StartTime == nil || *got[0].StartTime != 540 {
		t.Errorf("expected start time 09:00, got %v", got[0].StartTime)
	}
	if schedule.FormatDate(got[0].DueDate) != "2026-03-15" {
		t.Errorf("due date skewed on read: %s", got[0].DueDate)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelBatchCountsOnlyLiveTasks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	// One of the three is already terminal; the statement reports 2 rows.
	mock.ExpectExec("UPDATE scheduled_tasks").
		WithArgs(pgxmock.AnyArg(), ids, "doc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := store.CancelBatch(context.Background(), "doc-1", ids)
	if err != nil {
		t.Fatalf("cancel batch failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 cancelled, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelBatchEmptyIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	n, err := store.CancelBatch(context.Background(), "doc-1", nil)
	if err != nil {
		t.Fatalf("cancel batch failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 cancelled, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusRequiresOwnership(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	id := uuid.New()
	mock.ExpectExec("UPDATE scheduled_tasks").
		WithArgs("COMPLETED", pgxmock.AnyArg(), pgxmock.AnyArg(), id, "other-doc").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := store.UpdateStatus(context.Background(), "other-doc", id, StatusCompleted); err == nil {
		t.Fatal("expected error when no row matches")
	}
}
