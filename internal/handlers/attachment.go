package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/dazeez1/notes-app/internal/services"
	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartMemory = 8 << 20
	formFieldFile      = "file"
)

var errFileTooLarge = errors.New("uploaded file too large")

// AttachmentHandler provides HTTP handlers for note attachments.
type AttachmentHandler struct {
	attachmentService *services.AttachmentService
	maxBytes          int64
	logger            *slog.Logger
	devMode           bool
}

// NewAttachmentHandler constructs a handler with the provided service.
func NewAttachmentHandler(attachmentService *services.AttachmentService, maxBytes int64, logger *slog.Logger, devMode bool) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentService: attachmentService,
		maxBytes:          maxBytes,
		logger:            logger,
		devMode:           devMode,
	}
}

// AttachmentRouter registers attachment routes; NoteRouter mounts it
// under /{noteID}/attachments when an object storage backend is
// configured.
func AttachmentRouter(r chi.Router, handler *AttachmentHandler) {
	r.Post("/", handler.Upload)
	r.Get("/", handler.List)
	r.Route("/{attachmentID}", func(r chi.Router) {
		r.Get("/", handler.Download)
		r.Delete("/", handler.Delete)
	})
}

func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	owner, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unauthorized")
		return
	}
	noteID, err := parseIDParam(r, "noteID")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid multipart form")
		return
	}
	fileHeader, data, err := readUpload(r.MultipartForm, h.maxBytes)
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge,
				fmt.Sprintf("attachment exceeds %d bytes", h.maxBytes))
			return
		}
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	attachment, err := h.attachmentService.Upload(
		r.Context(),
		owner.ID,
		noteID,
		fileHeader.Filename,
		contentType,
		bytes.NewReader(data),
		int64(len(data)),
	)
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}
	writeSuccess(w, http.StatusCreated, "attachment uploaded", map[string]any{"attachment": attachment})
}

func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unauthorized")
		return
	}
	noteID, err := parseIDParam(r, "noteID")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	attachments, err := h.attachmentService.List(r.Context(), owner.ID, noteID)
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}
	writeSuccess(w, http.StatusOK, "attachments", map[string]any{"attachments": attachments})
}

// Download streams the attachment bytes; this endpoint answers with raw
// content, not the JSON envelope.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	owner, noteID, attachmentID, ok := h.params(w, r)
	if !ok {
		return
	}

	attachment, reader, err := h.attachmentService.Open(r.Context(), owner, noteID, attachmentID)
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(attachment.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.ErrorContext(r.Context(), "attachment stream failed",
			"attachment_id", attachment.ID,
			"error", err,
		)
	}
}

func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, noteID, attachmentID, ok := h.params(w, r)
	if !ok {
		return
	}

	if err := h.attachmentService.Delete(r.Context(), owner, noteID, attachmentID); err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}
	writeSuccess(w, http.StatusOK, "attachment deleted", nil)
}

func (h *AttachmentHandler) params(w http.ResponseWriter, r *http.Request) (ownerID, noteID, attachmentID int64, ok bool) {
	owner, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unauthorized")
		return 0, 0, 0, false
	}
	noteID, err = parseIDParam(r, "noteID")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return 0, 0, 0, false
	}
	attachmentID, err = parseIDParam(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return 0, 0, 0, false
	}
	return owner.ID, noteID, attachmentID, true
}

func readUpload(form *multipart.Form, limit int64) (*multipart.FileHeader, []byte, error) {
	if form == nil {
		return nil, nil, errors.New("missing form data")
	}

	files := form.File[formFieldFile]
	if len(files) == 0 {
		return nil, nil, errors.New("file is required")
	}
	if len(files) > 1 {
		return nil, nil, errors.New("only one file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	defer file.Close()

	limited := io.LimitReader(file, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, nil, errFileTooLarge
	}
	return fileHeader, data, nil
}
