package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskflowhq/taskflow/internal/service"
	"github.com/taskflowhq/taskflow/pkg/middleware"
	"github.com/taskflowhq/taskflow/pkg/validator"
)

// NoteHandler handles HTTP requests for note endpoints.
type NoteHandler struct {
	service *service.NoteService
	logger  *slog.Logger
}

// NewNoteHandler creates a new note HTTP handler.
func NewNoteHandler(svc *service.NoteService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{service: svc, logger: logger}
}

// CreateNoteRequest is the JSON request body for creating a note.
type CreateNoteRequest struct {
	Title    string   `json:"title" validate:"required,min=1,max=200"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags" validate:"omitempty,dive,min=1,max=50"`
	Color    string   `json:"color" validate:"omitempty,max=30"`
	FolderID *string  `json:"folderId" validate:"omitempty,uuid"`
}

// UpdateNoteRequest is the JSON request body for a partial note update.
type UpdateNoteRequest struct {
	Title      *string   `json:"title" validate:"omitempty,min=1,max=200"`
	Content    *string   `json:"content"`
	Tags       *[]string `json:"tags" validate:"omitempty,dive,min=1,max=50"`
	Color      *string   `json:"color" validate:"omitempty,max=30"`
	IsPinned   *bool     `json:"isPinned"`
	IsFavorite *bool     `json:"isFavorite"`
	FolderID   *string   `json:"folderId"`
}

// ShareNoteRequest is the JSON request body for sharing a note.
type ShareNoteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=viewer editor"`
}

// Create handles POST /api/v1/notes
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	note, err := h.service.Create(r.Context(), userID, service.CreateNoteInput{
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
		Color:    req.Color,
		FolderID: req.FolderID,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: note})
}

// List handles GET /api/v1/notes
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	filter := service.NoteFilter{}
	if v := r.URL.Query().Get("folderId"); v != "" {
		filter.FolderID = &v
	}
	if v := r.URL.Query().Get("tag"); v != "" {
		filter.Tag = &v
	}
	if r.URL.Query().Get("favorites") == "true" {
		filter.Favorites = true
	}

	notes, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: notes})
}

// ListTrash handles GET /api/v1/notes/trash
func (h *NoteHandler) ListTrash(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	notes, err := h.service.ListTrash(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: notes})
}

// Get handles GET /api/v1/notes/{id}
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	note, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: note})
}

// Update handles PATCH /api/v1/notes/{id}
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	note, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), service.UpdateNoteInput{
		Title:      req.Title,
		Content:    req.Content,
		Tags:       req.Tags,
		Color:      req.Color,
		IsPinned:   req.IsPinned,
		IsFavorite: req.IsFavorite,
		FolderID:   req.FolderID,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: note})
}

// Trash handles DELETE /api/v1/notes/{id}
func (h *NoteHandler) Trash(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")

	if err := h.service.Trash(r.Context(), userID, noteID); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"id": noteID, "status": "trashed"},
	})
}

// Restore handles POST /api/v1/notes/{id}/restore
func (h *NoteHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	note, err := h.service.Restore(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: note})
}

// Purge handles DELETE /api/v1/notes/{id}/permanent
func (h *NoteHandler) Purge(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	noteID := chi.URLParam(r, "id")

	if err := h.service.Purge(r.Context(), userID, noteID); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"id": noteID, "status": "deleted"},
	})
}

// Share handles POST /api/v1/notes/{id}/collaborators
func (h *NoteHandler) Share(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req ShareNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	note, err := h.service.Share(r.Context(), userID, chi.URLParam(r, "id"), req.Email, req.Role)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: note})
}

// ListCollaborators handles GET /api/v1/notes/{id}/collaborators
func (h *NoteHandler) ListCollaborators(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	collaborators, err := h.service.ListCollaborators(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: collaborators})
}

// Unshare handles DELETE /api/v1/notes/{id}/collaborators/{userId}
func (h *NoteHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	note, err := h.service.Unshare(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: note})
}
