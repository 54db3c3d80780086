package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dazeez1/notes-app/types"
)

// AttachmentRepository handles metadata rows for note attachments. Owner
// scoping happens one level up, through the owning note.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

const attachmentColumns = `id, note_id, file_name, content_type, size_bytes, object_key, created_at`

func (r *AttachmentRepository) Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	attachment.CreatedAt = time.Now()

	const query = `
		INSERT INTO note_attachments (note_id, file_name, content_type, size_bytes, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		attachment.NoteID,
		attachment.FileName,
		attachment.ContentType,
		attachment.SizeBytes,
		attachment.ObjectKey,
		attachment.CreatedAt,
	).Scan(&attachment.ID); err != nil {
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) ListByNote(ctx context.Context, noteID int64) ([]types.Attachment, error) {
	const query = `
		SELECT ` + attachmentColumns + `
		FROM note_attachments
		WHERE note_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := make([]types.Attachment, 0)
	for rows.Next() {
		var attachment types.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.NoteID,
			&attachment.FileName,
			&attachment.ContentType,
			&attachment.SizeBytes,
			&attachment.ObjectKey,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *AttachmentRepository) Get(ctx context.Context, noteID, id int64) (types.Attachment, error) {
	const query = `
		SELECT ` + attachmentColumns + `
		FROM note_attachments
		WHERE id = $1 AND note_id = $2`
	var attachment types.Attachment
	err := r.db.QueryRowContext(ctx, query, id, noteID).Scan(
		&attachment.ID,
		&attachment.NoteID,
		&attachment.FileName,
		&attachment.ContentType,
		&attachment.SizeBytes,
		&attachment.ObjectKey,
		&attachment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Attachment{}, ErrNotFound
		}
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, noteID, id int64) error {
	const query = `DELETE FROM note_attachments WHERE id = $1 AND note_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, noteID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
