package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskflowhq/taskflow/internal/service"
	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
	"github.com/taskflowhq/taskflow/pkg/middleware"
	"github.com/taskflowhq/taskflow/pkg/validator"
)

// HabitHandler handles HTTP requests for habit endpoints.
type HabitHandler struct {
	service *service.HabitService
	logger  *slog.Logger
}

// NewHabitHandler creates a new habit HTTP handler.
func NewHabitHandler(svc *service.HabitService, logger *slog.Logger) *HabitHandler {
	return &HabitHandler{service: svc, logger: logger}
}

// CreateHabitRequest is the JSON request body for creating a habit.
type CreateHabitRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
	Frequency   string `json:"frequency" validate:"omitempty,oneof=daily weekly"`
	TargetDays  int    `json:"targetDays" validate:"omitempty,gte=1,lte=7"`
	Color       string `json:"color" validate:"omitempty,max=30"`
	Icon        string `json:"icon" validate:"omitempty,max=50"`
}

// UpdateHabitRequest is the JSON request body for a partial habit update.
type UpdateHabitRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	TargetDays  *int    `json:"targetDays" validate:"omitempty,gte=1,lte=7"`
	Color       *string `json:"color" validate:"omitempty,max=30"`
	Icon        *string `json:"icon" validate:"omitempty,max=50"`
}

// LogHabitRequest is the JSON request body for recording a day's completion.
type LogHabitRequest struct {
	Date      string `json:"date" validate:"required"`
	Completed *bool  `json:"completed"`
	Note      string `json:"note" validate:"max=500"`
}

// ShareHabitRequest is the JSON request body for sharing a habit.
type ShareHabitRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Create handles POST /api/v1/habits
func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CreateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	habit, err := h.service.Create(r.Context(), userID, service.CreateHabitInput{
		Name:        req.Name,
		Description: req.Description,
		Frequency:   req.Frequency,
		TargetDays:  req.TargetDays,
		Color:       req.Color,
		Icon:        req.Icon,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: habit})
}

// List handles GET /api/v1/habits
func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	includeArchived := r.URL.Query().Get("includeArchived") == "true"

	habits, err := h.service.List(r.Context(), userID, includeArchived)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: habits})
}

// ListShared handles GET /api/v1/habits/shared
func (h *HabitHandler) ListShared(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	habits, err := h.service.ListShared(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: habits})
}

// Get handles GET /api/v1/habits/{id}
func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	habit, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: habit})
}

// Update handles PATCH /api/v1/habits/{id}
func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req UpdateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	habit, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), service.UpdateHabitInput{
		Name:        req.Name,
		Description: req.Description,
		TargetDays:  req.TargetDays,
		Color:       req.Color,
		Icon:        req.Icon,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: habit})
}

// Archive handles DELETE /api/v1/habits/{id}
func (h *HabitHandler) Archive(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	habitID := chi.URLParam(r, "id")

	if err := h.service.Archive(r.Context(), userID, habitID); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"id": habitID, "status": "archived"},
	})
}

// Log handles POST /api/v1/habits/{id}/logs
func (h *HabitHandler) Log(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req LogHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeAppError(w, r, apperrors.InvalidInput("date must be in YYYY-MM-DD format"))
		return
	}

	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}

	userID := middleware.UserIDFromContext(r.Context())
	log, err := h.service.Log(r.Context(), userID, chi.URLParam(r, "id"), service.LogHabitInput{
		Date:      date,
		Completed: completed,
		Note:      req.Note,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: log})
}

// Unlog handles DELETE /api/v1/habits/{id}/logs/{date}
func (h *HabitHandler) Unlog(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		writeAppError(w, r, apperrors.InvalidInput("date must be in YYYY-MM-DD format"))
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if err := h.service.Unlog(r.Context(), userID, chi.URLParam(r, "id"), date); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"status": "removed"},
	})
}

// ListLogs handles GET /api/v1/habits/{id}/logs?year=2026&month=9
func (h *HabitHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year := now.Year()
	month := now.Month()

	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 2000 || y > 2200 {
			writeAppError(w, r, apperrors.InvalidInput("invalid year"))
			return
		}
		year = y
	}
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			writeAppError(w, r, apperrors.InvalidInput("invalid month"))
			return
		}
		month = time.Month(m)
	}

	userID := middleware.UserIDFromContext(r.Context())
	logs, err := h.service.ListLogs(r.Context(), userID, chi.URLParam(r, "id"), year, month)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: logs})
}

// Streak handles GET /api/v1/habits/{id}/streak
func (h *HabitHandler) Streak(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	streak, err := h.service.Streak(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: streak})
}

// Analytics handles GET /api/v1/habits/analytics
func (h *HabitHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	summary, err := h.service.Analytics(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: summary})
}

// Heatmap handles GET /api/v1/habits/heatmap?from=2026-01-01&to=2026-03-31
func (h *HabitHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -364)

	if v := r.URL.Query().Get("from"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeAppError(w, r, apperrors.InvalidInput("from must be in YYYY-MM-DD format"))
			return
		}
		from = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeAppError(w, r, apperrors.InvalidInput("to must be in YYYY-MM-DD format"))
			return
		}
		to = d
	}

	userID := middleware.UserIDFromContext(r.Context())
	cells, err := h.service.Heatmap(r.Context(), userID, from, to)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: cells})
}

// Share handles POST /api/v1/habits/{id}/share
func (h *HabitHandler) Share(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req ShareHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	habit, err := h.service.Share(r.Context(), userID, chi.URLParam(r, "id"), req.Email)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: habit})
}

// Unshare handles DELETE /api/v1/habits/{id}/share/{userId}
func (h *HabitHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	habit, err := h.service.Unshare(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: habit})
}
