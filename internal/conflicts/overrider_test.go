package conflicts

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/consultare/practice-api/internal/appointments"
	"github.com/consultare/practice-api/internal/locks"
)

type stubCanceller struct {
	mu        sync.Mutex
	cancelled int64
	err       error
	calls     int
	lastIDs   []uuid.UUID
}

func (s *stubCanceller) CancelBatch(ctx context.Context, doctorID string, ids []uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastIDs = ids
	if s.err != nil {
		return 0, s.err
	}
	return s.cancelled, nil
}

type stubLocker struct {
	err      error
	acquired int
	released int
}

func (s *stubLocker) Acquire(ctx context.Context, doctorID string) (func(), error) {
	if s.err != nil {
		return nil, s.err
	}
	s.acquired++
	return func() { s.released++ }, nil
}

func TestOverrideBlocksSlotsThenCancelsTasks(t *testing.T) {
	slots := newStubSlotAPI()
	canceller := &stubCanceller{cancelled: 1}
	o := NewOverrider(slots, canceller, nil, nil, nil)

	taskID := uuid.New()
	outcome, err := o.Override(context.Background(), "doc-1", []uuid.UUID{taskID}, []string{"slot-1"})
	if err != nil {
		t.Fatalf("Override: %v", err)
	}
	if outcome.CancelledTasks != 1 || outcome.BlockedSlots != 1 {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if slots.statuses["slot-1"] != appointments.StatusBlocked {
		t.Errorf("slot-1 status = %q, want BLOCKED", slots.statuses["slot-1"])
	}
	if canceller.calls != 1 || len(canceller.lastIDs) != 1 || canceller.lastIDs[0] != taskID {
		t.Errorf("cancellation not forwarded: calls=%d ids=%v", canceller.calls, canceller.lastIDs)
	}
}

func TestOverrideRejectsEmptyRequest(t *testing.T) {
	o := NewOverrider(newStubSlotAPI(), &stubCanceller{}, nil, nil, nil)
	if _, err := o.Override(context.Background(), "doc-1", nil, nil); !errors.Is(err, ErrEmptyOverride) {
		t.Fatalf("err = %v, want ErrEmptyOverride", err)
	}
}

func TestOverrideRollsBackOnPartialBlockFailure(t *testing.T) {
	slots := newStubSlotAPI()
	slots.failBlocks["slot-2"] = errors.New("409 slot already taken")
	canceller := &stubCanceller{cancelled: 3}
	o := NewOverrider(slots, canceller, nil, nil, nil)

	_, err := o.Override(context.Background(), "doc-1",
		[]uuid.UUID{uuid.New()}, []string{"slot-1", "slot-2", "slot-3"})

	var pbe *PartialBlockError
	if !errors.As(err, &pbe) {
		t.Fatalf("err = %v, want *PartialBlockError", err)
	}
	if len(pbe.FailedSlots) != 1 || pbe.FailedSlots[0] != "slot-2" {
		t.Errorf("FailedSlots = %v, want [slot-2]", pbe.FailedSlots)
	}
	if canceller.calls != 0 {
		t.Error("no task may be cancelled when blocking fails")
	}
	for _, id := range []string{"slot-1", "slot-3"} {
		if got := slots.statuses[id]; got != appointments.StatusAvailable {
			t.Errorf("%s status = %q, want AVAILABLE after rollback", id, got)
		}
	}
}

func TestOverrideLeavesSlotsBlockedWhenCancellationFails(t *testing.T) {
	slots := newStubSlotAPI()
	canceller := &stubCanceller{err: errors.New("db down")}
	o := NewOverrider(slots, canceller, nil, nil, nil)

	_, err := o.Override(context.Background(), "doc-1", []uuid.UUID{uuid.New()}, []string{"slot-1"})
	var cancelFailed *CancelFailedError
	if !errors.As(err, &cancelFailed) {
		t.Fatalf("err = %v, want *CancelFailedError", err)
	}
	if cancelFailed.BlockedSlots != 1 {
		t.Errorf("BlockedSlots = %d, want 1", cancelFailed.BlockedSlots)
	}
	if got := slots.statuses["slot-1"]; got != appointments.StatusBlocked {
		t.Errorf("slot-1 status = %q; the hold must survive a failed cancellation", got)
	}
}

func TestOverrideTreatsTerminalTasksAsBenign(t *testing.T) {
	// CancelBatch reports fewer rows than requested when some tasks were
	// already completed or cancelled. That is not an error.
	slots := newStubSlotAPI()
	canceller := &stubCanceller{cancelled: 1}
	o := NewOverrider(slots, canceller, nil, nil, nil)

	outcome, err := o.Override(context.Background(), "doc-1",
		[]uuid.UUID{uuid.New(), uuid.New(), uuid.New()}, nil)
	if err != nil {
		t.Fatalf("Override: %v", err)
	}
	if outcome.CancelledTasks != 1 {
		t.Errorf("CancelledTasks = %d, want 1", outcome.CancelledTasks)
	}
}

func TestOverrideReturnsBusyWhenLeaseHeld(t *testing.T) {
	locker := &stubLocker{err: locks.ErrLocked}
	o := NewOverrider(newStubSlotAPI(), &stubCanceller{}, locker, nil, nil)

	_, err := o.Override(context.Background(), "doc-1", []uuid.UUID{uuid.New()}, nil)
	if !errors.Is(err, ErrDoctorBusy) {
		t.Fatalf("err = %v, want ErrDoctorBusy", err)
	}
}

func TestOverrideReleasesLease(t *testing.T) {
	locker := &stubLocker{}
	o := NewOverrider(newStubSlotAPI(), &stubCanceller{cancelled: 1}, locker, nil, nil)

	if _, err := o.Override(context.Background(), "doc-1", []uuid.UUID{uuid.New()}, []string{"slot-1"}); err != nil {
		t.Fatalf("Override: %v", err)
	}
	if locker.acquired != 1 || locker.released != 1 {
		t.Errorf("lease acquired=%d released=%d, want 1/1", locker.acquired, locker.released)
	}
}
