package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dazeez1/notes-app/internal/storage"
	"github.com/dazeez1/notes-app/types"
)

// AttachmentRepository defines persistence operations for attachment
// metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error)
	ListByNote(ctx context.Context, noteID int64) ([]types.Attachment, error)
	Get(ctx context.Context, noteID, id int64) (types.Attachment, error)
	Delete(ctx context.Context, noteID, id int64) error
}

// AttachmentService stores note attachments: bytes in object storage,
// metadata in the database. Every operation resolves the owning note
// first, so foreign notes fail as not-found before any object access.
type AttachmentService struct {
	notes   NoteRepository
	repo    AttachmentRepository
	storage *storage.Storage
}

func NewAttachmentService(notes NoteRepository, repo AttachmentRepository, st *storage.Storage) *AttachmentService {
	return &AttachmentService{
		notes:   notes,
		repo:    repo,
		storage: st,
	}
}

// Upload streams the file into the bucket and records its metadata.
func (s *AttachmentService) Upload(ctx context.Context, ownerID, noteID int64, fileName, contentType string, r io.Reader, size int64) (types.Attachment, error) {
	if _, err := s.notes.Get(ctx, ownerID, noteID); err != nil {
		return types.Attachment{}, err
	}

	fileName = filepath.Base(fileName)
	key := fmt.Sprintf("notes/%d/attachments/%d-%s", noteID, time.Now().UnixNano(), fileName)
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return types.Attachment{}, err
	}

	return s.repo.Create(ctx, types.Attachment{
		NoteID:      noteID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   size,
		ObjectKey:   key,
	})
}

func (s *AttachmentService) List(ctx context.Context, ownerID, noteID int64) ([]types.Attachment, error) {
	if _, err := s.notes.Get(ctx, ownerID, noteID); err != nil {
		return nil, err
	}
	return s.repo.ListByNote(ctx, noteID)
}

// Open returns the attachment metadata and a reader over its bytes. The
// caller closes the reader.
func (s *AttachmentService) Open(ctx context.Context, ownerID, noteID, id int64) (types.Attachment, io.ReadCloser, error) {
	if _, err := s.notes.Get(ctx, ownerID, noteID); err != nil {
		return types.Attachment{}, nil, err
	}
	attachment, err := s.repo.Get(ctx, noteID, id)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	reader, err := s.storage.Get(ctx, attachment.ObjectKey)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	return attachment, reader, nil
}

// Delete removes the object first, then the metadata row. A dangling row
// is worse than a dangling object.
func (s *AttachmentService) Delete(ctx context.Context, ownerID, noteID, id int64) error {
	if _, err := s.notes.Get(ctx, ownerID, noteID); err != nil {
		return err
	}
	attachment, err := s.repo.Get(ctx, noteID, id)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, attachment.ObjectKey); err != nil {
		return err
	}
	return s.repo.Delete(ctx, noteID, id)
}
