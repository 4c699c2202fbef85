package conflicts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/consultare/practice-api/internal/appointments"
	"github.com/consultare/practice-api/internal/locks"
	"github.com/consultare/practice-api/internal/observability/metrics"
	"github.com/consultare/practice-api/pkg/logging"
)

// Overrider applies a batch conflict resolution across two systems of
// record with no shared transaction: the scheduling service (slot blocking)
// and the local task store (cancellation). Slots are blocked first because
// the external side is the failure-prone one — if blocking fails, no local
// state has been touched and the whole operation is retryable from a clean
// state. Local cancellation only runs once the entire blocking intent was
// honored.
type Overrider struct {
	slots   appointments.SlotAPI
	tasks   TaskCanceller
	locker  locks.DoctorLocker
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
}

// NewOverrider constructs an override coordinator. locker may be nil, in
// which case concurrent overrides for the same doctor are not serialized.
func NewOverrider(slots appointments.SlotAPI, canceller TaskCanceller, locker locks.DoctorLocker, logger *logging.Logger, m *metrics.SchedulingMetrics) *Overrider {
	if slots == nil {
		panic("conflicts: slot API required")
	}
	if canceller == nil {
		panic("conflicts: task canceller required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Overrider{slots: slots, tasks: canceller, locker: locker, logger: logger, metrics: m}
}

// Override blocks the listed slots and, only if every block succeeded,
// cancels the listed tasks. On a partial block failure the succeeded subset
// is reset best-effort and a *PartialBlockError names the slots that
// failed; no task is touched on that path.
func (o *Overrider) Override(ctx context.Context, doctorID string, taskIDsToCancel []uuid.UUID, slotIDsToBlock []string) (*Outcome, error) {
	if len(taskIDsToCancel) == 0 && len(slotIDsToBlock) == 0 {
		return nil, ErrEmptyOverride
	}

	ctx, span := conflictsTracer.Start(ctx, "conflicts.override")
	defer span.End()
	span.SetAttributes(
		attribute.String("practice.doctor_id", doctorID),
		attribute.Int("practice.tasks_to_cancel", len(taskIDsToCancel)),
		attribute.Int("practice.slots_to_block", len(slotIDsToBlock)),
	)

	start := time.Now()

	if o.locker != nil {
		release, err := o.locker.Acquire(ctx, doctorID)
		if err != nil {
			if errors.Is(err, locks.ErrLocked) {
				o.metrics.ObserveOverride("busy", time.Since(start).Seconds())
				return nil, ErrDoctorBusy
			}
			o.metrics.ObserveOverride("error", time.Since(start).Seconds())
			return nil, fmt.Errorf("conflicts: acquire override lease: %w", err)
		}
		defer release()
	}

	blocked, failed := o.blockSlots(ctx, slotIDsToBlock)
	if len(failed) > 0 {
		o.rollbackSlots(ctx, blocked)
		o.logger.Error("override aborted on partial block failure",
			"doctor_id", doctorID,
			"failed_slots", failed,
			"rolled_back", len(blocked),
		)
		o.metrics.ObserveOverride("partial_block_failure", time.Since(start).Seconds())
		span.RecordError(&PartialBlockError{FailedSlots: failed})
		return nil, &PartialBlockError{FailedSlots: failed}
	}
	o.metrics.ObserveSlotsBlocked(len(blocked))

	cancelled, err := o.tasks.CancelBatch(ctx, doctorID, taskIDsToCancel)
	if err != nil {
		// Slots stay blocked: the hold is what the caller asked for, and
		// the cancellation can be retried without re-blocking.
		o.logger.Error("task cancellation failed after slots were blocked",
			"doctor_id", doctorID, "blocked_slots", len(blocked), "error", err)
		o.metrics.ObserveOverride("error", time.Since(start).Seconds())
		span.RecordError(err)
		return nil, &CancelFailedError{BlockedSlots: len(blocked), Err: err}
	}

	o.logger.Info("override applied",
		"doctor_id", doctorID,
		"cancelled_tasks", cancelled,
		"blocked_slots", len(blocked),
	)
	o.metrics.ObserveOverride("applied", time.Since(start).Seconds())
	return &Outcome{CancelledTasks: cancelled, BlockedSlots: len(blocked)}, nil
}

// blockSlots issues every block request concurrently and lets each attempt
// run to completion regardless of sibling failures — the decision to
// proceed waits on all of them.
func (o *Overrider) blockSlots(ctx context.Context, slotIDs []string) (blocked, failed []string) {
	if len(slotIDs) == 0 {
		return nil, nil
	}

	errs := make([]error, len(slotIDs))
	var wg sync.WaitGroup
	for i, id := range slotIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = o.slots.UpdateSlotStatus(ctx, id, appointments.StatusBlocked)
		}(i, id)
	}
	wg.Wait()

	for i, id := range slotIDs {
		if errs[i] != nil {
			o.logger.Warn("slot block failed", "slot_id", id, "error", errs[i])
			failed = append(failed, id)
		} else {
			blocked = append(blocked, id)
		}
	}
	return blocked, failed
}

// rollbackSlots resets already-blocked slots to AVAILABLE. Best-effort:
// there is no durable saga log, so a failed reset is logged and left for
// manual reconciliation.
func (o *Overrider) rollbackSlots(ctx context.Context, blocked []string) {
	for _, id := range blocked {
		if err := o.slots.UpdateSlotStatus(ctx, id, appointments.StatusAvailable); err != nil {
			o.logger.Error("compensating slot reset failed", "slot_id", id, "error", err)
			continue
		}
		o.metrics.ObserveRollbacks(1)
	}
}
