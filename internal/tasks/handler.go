package tasks

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/consultare/practice-api/internal/http/middleware"
	"github.com/consultare/practice-api/internal/schedule"
	"github.com/consultare/practice-api/pkg/logging"
)

// Handler provides HTTP endpoints for task management.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a task HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes returns a chi router with the task endpoints. Callers mount it
// behind doctor auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.ListForDay)
	r.Get("/{taskID}", h.Get)
	r.Patch("/{taskID}/status", h.UpdateStatus)
	return r
}

type createTaskRequest struct {
	Title     string `json:"title"`
	DueDate   string `json:"due_date"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Priority  string `json:"priority,omitempty"`
}

// Create inserts a new task for the authenticated doctor.
// POST /tasks
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := middleware.DoctorIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "missing doctor identity"}`, http.StatusUnauthorized)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	due, err := schedule.ParseDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if (req.StartTime == "") != (req.EndTime == "") {
		writeError(w, http.StatusBadRequest, "start_time and end_time must be set together")
		return
	}

	task := &ScheduledTask{
		DoctorID: doctorID,
		Title:    req.Title,
		DueDate:  due,
	}
	if req.StartTime != "" {
		start, err := schedule.ParseClock(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		end, err := schedule.ParseClock(req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		task.StartTime = &start
		task.EndTime = &end
	}
	if req.Priority != "" {
		priority := TaskPriority(req.Priority)
		if !priority.Valid() {
			writeError(w, http.StatusBadRequest, "priority must be LOW, MEDIUM or HIGH")
			return
		}
		task.Priority = priority
	}

	if err := h.store.Create(r.Context(), task); err != nil {
		h.logger.Error("failed to create task", "doctor_id", doctorID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, task, h.logger)
}

// ListForDay returns every task due on a given day.
// GET /tasks?date=YYYY-MM-DD
func (h *Handler) ListForDay(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := middleware.DoctorIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "missing doctor identity"}`, http.StatusUnauthorized)
		return
	}

	date, err := schedule.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date query parameter: "+err.Error())
		return
	}

	list, err := h.store.ListForDay(r.Context(), doctorID, date)
	if err != nil {
		h.logger.Error("failed to list tasks", "doctor_id", doctorID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": list}, h.logger)
}

// Get returns a single task.
// GET /tasks/{taskID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := middleware.DoctorIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "missing doctor identity"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "task ID is not a valid UUID")
		return
	}

	task, err := h.store.Get(r.Context(), doctorID, id)
	if err != nil {
		h.logger.Error("failed to get task", "doctor_id", doctorID, "task_id", id, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task, h.logger)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus transitions a task's status.
// PATCH /tasks/{taskID}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := middleware.DoctorIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "missing doctor identity"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "task ID is not a valid UUID")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	status := TaskStatus(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be PENDING, IN_PROGRESS, COMPLETED or CANCELLED")
		return
	}

	if err := h.store.UpdateStatus(r.Context(), doctorID, id, status); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		h.logger.Error("failed to update task status", "doctor_id", doctorID, "task_id", id, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
