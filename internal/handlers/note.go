package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dazeez1/notes-app/internal/services"
	"github.com/dazeez1/notes-app/types"
	"github.com/go-chi/chi/v5"
)

// NoteHandler provides HTTP handlers for notes.
type NoteHandler struct {
	noteService *services.NoteService
	logger      *slog.Logger
	devMode     bool
}

// NewNoteHandler constructs a handler with the provided service.
func NewNoteHandler(noteService *services.NoteService, logger *slog.Logger, devMode bool) *NoteHandler {
	return &NoteHandler{
		noteService: noteService,
		logger:      logger,
		devMode:     devMode,
	}
}

// NoteRouter registers note routes on the given router. The caller mounts
// it behind the auth middleware; every operation here assumes an
// authenticated owner in the context. A nil attachments handler leaves
// the attachment routes unregistered.
func NoteRouter(r chi.Router, handler *NoteHandler, attachments *AttachmentHandler) {
	r.Post("/", handler.CreateNote)
	r.Get("/", handler.ListNotes)
	r.Get("/search", handler.SearchNotes)
	r.Get("/stats", handler.NoteStats)
	r.Route("/{noteID}", func(r chi.Router) {
		r.Get("/", handler.GetNote)
		r.Put("/", handler.UpdateNote)
		r.Delete("/", handler.DeleteNote)
		r.Patch("/pin", handler.TogglePin)
		r.Patch("/archive", handler.ToggleArchive)
		if attachments != nil {
			r.Route("/attachments", func(r chi.Router) {
				AttachmentRouter(r, attachments)
			})
		}
	})
}

type CreateNoteRequest struct {
	Title   string   `json:"noteTitle"`
	Content string   `json:"noteContent"`
	Tags    []string `json:"noteTags"`
}

// UpdateNoteRequest uses pointers so that an omitted field is
// distinguishable from an empty one: nil means leave untouched.
type UpdateNoteRequest struct {
	Title   *string   `json:"noteTitle"`
	Content *string   `json:"noteContent"`
	Tags    *[]string `json:"noteTags"`
}

// NoteListData is the paginated listing payload.
type NoteListData struct {
	Notes []types.Note `json:"notes"`
	Total int64        `json:"total"`
	Limit int          `json:"limit"`
	Skip  int          `json:"skip"`
}

func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	owner, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unauthorized")
		return
	}

	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	note, err := h.noteService.Create(r.Context(), owner.ID, services.CreateNoteInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}
	writeSuccess(w, http.StatusCreated, "note created", map[string]any{"note": note})
}

func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	owner, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unauthorized")
		return
	}

	limit, skip, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	query := r.URL.Query()
	var tags []string
	if tag := strings.TrimSpace(query.Get("tag")); tag != "" {
		tags = append(tags, tag)
	}
	if raw := strings.TrimSpace(query.Get("tags")); raw != "" {
		tags = append(tags, strings.Split(raw, ",")...)
	}
	includeArchived, _ := strconv.ParseBool(query.Get("includeArchived"))

	notes, total, err := h.noteService.List(r.Context(), owner.ID, services.ListNotesInput{
		Tags:            tags,
		IncludeArchived: includeArchived,
		Limit:           limit,
		Offset:          skip,
	})
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}

	writeSuccess(w, http.StatusOK, "notes", NoteListData{
		Notes: notes,
		Total: total,
		Limit: effectiveLimit(limit),
		Skip:  skip,
	})
}

func (h *NoteHandler) SearchNotes(w http.ResponseWriter, r *http.Request) {
	owner, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unauthorized")
		return
	}

	limit, skip, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	notes, total, err := h.noteService.Search(r.Context(), owner.ID, r.URL.Query().Get("q"), limit, skip)
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}

	writeSuccess(w, http.StatusOK, "search results", NoteListData{
		Notes: notes,
		Total: total,
		Limit: effectiveLimit(limit),
		Skip:  skip,
	})
}

func (h *NoteHandler) NoteStats(w http.ResponseWriter, r *http.Request) {
	owner, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unauthorized")
		return
	}

	tagLimit := 5
	if raw := strings.TrimSpace(r.URL.Query().Get("tagLimit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid tagLimit")
			return
		}
		tagLimit = parsed
	}

	stats, err := h.noteService.Stats(r.Context(), owner.ID)
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}
	popular, err := h.noteService.PopularTags(r.Context(), owner.ID, tagLimit)
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}

	writeSuccess(w, http.StatusOK, "note statistics", map[string]any{
		"stats":       stats,
		"popularTags": popular,
	})
}

func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	owner, noteID, ok := h.ownerAndNoteID(w, r)
	if !ok {
		return
	}

	note, err := h.noteService.Get(r.Context(), owner.ID, noteID)
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}
	writeSuccess(w, http.StatusOK, "note", map[string]any{"note": note})
}

func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	owner, noteID, ok := h.ownerAndNoteID(w, r)
	if !ok {
		return
	}

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	note, err := h.noteService.Update(r.Context(), owner.ID, noteID, services.UpdateNoteInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}
	writeSuccess(w, http.StatusOK, "note updated", map[string]any{"note": note})
}

func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	owner, noteID, ok := h.ownerAndNoteID(w, r)
	if !ok {
		return
	}

	if err := h.noteService.Delete(r.Context(), owner.ID, noteID); err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}
	writeSuccess(w, http.StatusOK, "note deleted", nil)
}

func (h *NoteHandler) TogglePin(w http.ResponseWriter, r *http.Request) {
	owner, noteID, ok := h.ownerAndNoteID(w, r)
	if !ok {
		return
	}

	note, err := h.noteService.TogglePin(r.Context(), owner.ID, noteID)
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}
	writeSuccess(w, http.StatusOK, "pin toggled", map[string]any{"note": note})
}

func (h *NoteHandler) ToggleArchive(w http.ResponseWriter, r *http.Request) {
	owner, noteID, ok := h.ownerAndNoteID(w, r)
	if !ok {
		return
	}

	note, err := h.noteService.ToggleArchive(r.Context(), owner.ID, noteID)
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}
	writeSuccess(w, http.StatusOK, "archive toggled", map[string]any{"note": note})
}

func (h *NoteHandler) ownerAndNoteID(w http.ResponseWriter, r *http.Request) (owner types.User, noteID int64, ok bool) {
	owner, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unauthorized")
		return types.User{}, 0, false
	}
	noteID, err = parseIDParam(r, "noteID")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return types.User{}, 0, false
	}
	return owner, noteID, true
}

func effectiveLimit(limit int) int {
	if limit < 1 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
