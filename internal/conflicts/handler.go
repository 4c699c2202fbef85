package conflicts

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/consultare/practice-api/internal/http/middleware"
	"github.com/consultare/practice-api/internal/schedule"
	"github.com/consultare/practice-api/pkg/logging"
)

// maxBatchEntries caps one batch-check request.
const maxBatchEntries = 100

// Handler provides HTTP endpoints for conflict checks and overrides.
type Handler struct {
	checker   *Checker
	overrider *Overrider
	logger    *logging.Logger
}

// NewHandler creates a conflict HTTP handler.
func NewHandler(checker *Checker, overrider *Overrider, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{checker: checker, overrider: overrider, logger: logger}
}

// Routes returns a chi router with the conflict endpoints. Callers mount it
// behind doctor auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/check", h.Check)
	r.Post("/check-batch", h.CheckBatch)
	r.Post("/override", h.Override)
	return r
}

type checkRequest struct {
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	ExcludeTaskID string `json:"exclude_task_id,omitempty"`
}

func (req *checkRequest) window() (schedule.TimeWindow, *uuid.UUID, error) {
	w, err := schedule.ParseTimeWindow(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return schedule.TimeWindow{}, nil, err
	}
	if req.ExcludeTaskID == "" {
		return w, nil, nil
	}
	id, err := uuid.Parse(req.ExcludeTaskID)
	if err != nil {
		return schedule.TimeWindow{}, nil, errors.New("exclude_task_id is not a valid UUID")
	}
	return w, &id, nil
}

// Check runs a single-window conflict check.
// POST /schedule/conflicts/check
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := middleware.DoctorIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "missing doctor identity"}`, http.StatusUnauthorized)
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	window, excludeID, err := req.window()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.checker.Check(r.Context(), doctorID, window, excludeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result, h.logger)
}

type checkBatchRequest struct {
	Entries []checkRequest `json:"entries"`
}

// CheckBatch checks several windows in one call.
// POST /schedule/conflicts/check-batch
func (h *Handler) CheckBatch(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := middleware.DoctorIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "missing doctor identity"}`, http.StatusUnauthorized)
		return
	}

	var req checkBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "entries must not be empty")
		return
	}
	if len(req.Entries) > maxBatchEntries {
		writeError(w, http.StatusBadRequest, "too many entries in one batch")
		return
	}

	entries := make([]BatchEntry, len(req.Entries))
	for i, entry := range req.Entries {
		window, excludeID, err := entry.window()
		if err != nil {
			writeError(w, http.StatusBadRequest, "entry "+strconv.Itoa(i)+": "+err.Error())
			return
		}
		entries[i] = BatchEntry{Window: window, ExcludeTaskID: excludeID}
	}

	results, err := h.checker.CheckBatch(r.Context(), doctorID, entries)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results}, h.logger)
}

type overrideRequest struct {
	TaskIDsToCancel []string `json:"task_ids_to_cancel"`
	SlotIDsToBlock  []string `json:"slot_ids_to_block"`
}

// Override applies a batch conflict resolution.
// POST /schedule/conflicts/override
func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := middleware.DoctorIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "missing doctor identity"}`, http.StatusUnauthorized)
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	taskIDs := make([]uuid.UUID, 0, len(req.TaskIDsToCancel))
	for _, raw := range req.TaskIDsToCancel {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "task_ids_to_cancel contains an invalid UUID")
			return
		}
		taskIDs = append(taskIDs, id)
	}

	outcome, err := h.overrider.Override(r.Context(), doctorID, taskIDs, req.SlotIDsToBlock)
	if err != nil {
		var partial *PartialBlockError
		var cancelFailed *CancelFailedError
		switch {
		case errors.Is(err, ErrEmptyOverride):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrDoctorBusy):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &partial):
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":        "failed to block one or more slots",
				"failed_slots": partial.FailedSlots,
			}, h.logger)
		case errors.As(err, &cancelFailed):
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":         "task cancellation failed; slot holds remain in place, retry the cancellation",
				"blocked_slots": cancelFailed.BlockedSlots,
			}, h.logger)
		default:
			h.logger.Error("override failed", "doctor_id", doctorID, "error", err)
			http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, outcome, h.logger)
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *logging.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
