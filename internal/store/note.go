package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dazeez1/notes-app/types"
	"github.com/lib/pq"
)

// NoteRepository handles persistence for notes. Every query filters by
// owner, so a foreign note behaves exactly like a missing one.
type NoteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// NoteFilter narrows a listing. An empty Tags slice means no tag filter;
// a non-empty one matches notes carrying at least one of the tags.
type NoteFilter struct {
	Tags            []string
	IncludeArchived bool
	Limit           int
	Offset          int
}

const noteColumns = `id, owner_id, title, content, tags, pinned, archived, created_at, updated_at`

func scanNote(scanner interface {
	Scan(dest ...any) error
}) (types.Note, error) {
	var note types.Note
	err := scanner.Scan(
		&note.ID,
		&note.OwnerID,
		&note.Title,
		&note.Content,
		pq.Array(&note.Tags),
		&note.Pinned,
		&note.Archived,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Note{}, ErrNotFound
		}
		return types.Note{}, err
	}
	if note.Tags == nil {
		note.Tags = []string{}
	}
	return note, nil
}

// List returns one page of the owner's notes, pinned first, newest first,
// together with the total count under the same filter.
func (r *NoteRepository) List(ctx context.Context, ownerID int64, filter NoteFilter) ([]types.Note, int64, error) {
	conditions := []string{"owner_id = $1"}
	args := []any{ownerID}

	if !filter.IncludeArchived {
		conditions = append(conditions, "archived = FALSE")
	}
	if len(filter.Tags) > 0 {
		args = append(args, pq.Array(filter.Tags))
		conditions = append(conditions, fmt.Sprintf("tags && $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := `SELECT COUNT(1) FROM notes WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Offset, filter.Limit)
	listQuery := fmt.Sprintf(`
		SELECT `+noteColumns+`
		FROM notes
		WHERE `+where+`
		ORDER BY pinned DESC, created_at DESC
		OFFSET $%d LIMIT $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	notes := make([]types.Note, 0, filter.Limit)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

// Search runs a full-text query against the owner's non-archived notes.
// Title matches rank above content matches; equal ranks fall back to
// creation time descending.
func (r *NoteRepository) Search(ctx context.Context, ownerID int64, query string, limit, offset int) ([]types.Note, int64, error) {
	const countQuery = `
		SELECT COUNT(1)
		FROM notes
		WHERE owner_id = $1
		  AND archived = FALSE
		  AND search @@ plainto_tsquery('english', $2)`
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, ownerID, query).Scan(&total); err != nil {
		return nil, 0, err
	}

	const searchQuery = `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE owner_id = $1
		  AND archived = FALSE
		  AND search @@ plainto_tsquery('english', $2)
		ORDER BY ts_rank(search, plainto_tsquery('english', $2)) DESC, created_at DESC
		OFFSET $3 LIMIT $4`
	rows, err := r.db.QueryContext(ctx, searchQuery, ownerID, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	notes := make([]types.Note, 0, limit)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

func (r *NoteRepository) Get(ctx context.Context, ownerID, id int64) (types.Note, error) {
	const query = `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE id = $1 AND owner_id = $2`
	return scanNote(r.db.QueryRowContext(ctx, query, id, ownerID))
}

func (r *NoteRepository) Create(ctx context.Context, note types.Note) (types.Note, error) {
	now := time.Now()
	note.CreatedAt = now
	note.UpdatedAt = now

	const query = `
		INSERT INTO notes (owner_id, title, content, tags, pinned, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		note.OwnerID,
		note.Title,
		note.Content,
		pq.Array(note.Tags),
		note.Pinned,
		note.Archived,
		note.CreatedAt,
		note.UpdatedAt,
	).Scan(&note.ID); err != nil {
		return types.Note{}, err
	}
	return note, nil
}

// Update writes title, content, and tags back. The pin and archive flags
// change only through their toggles.
func (r *NoteRepository) Update(ctx context.Context, note types.Note) (types.Note, error) {
	note.UpdatedAt = time.Now()

	const query = `
		UPDATE notes
		SET title = $1,
			content = $2,
			tags = $3,
			updated_at = $4
		WHERE id = $5 AND owner_id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		note.Title,
		note.Content,
		pq.Array(note.Tags),
		note.UpdatedAt,
		note.ID,
		note.OwnerID,
	)
	if err != nil {
		return types.Note{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Note{}, err
	}
	if affected == 0 {
		return types.Note{}, ErrNotFound
	}
	return note, nil
}

// TogglePin flips the pinned flag in a single statement and returns the
// resulting row.
func (r *NoteRepository) TogglePin(ctx context.Context, ownerID, id int64) (types.Note, error) {
	const query = `
		UPDATE notes
		SET pinned = NOT pinned, updated_at = $3
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + noteColumns
	return scanNote(r.db.QueryRowContext(ctx, query, id, ownerID, time.Now()))
}

// ToggleArchive flips the archived flag in a single statement and returns
// the resulting row.
func (r *NoteRepository) ToggleArchive(ctx context.Context, ownerID, id int64) (types.Note, error) {
	const query = `
		UPDATE notes
		SET archived = NOT archived, updated_at = $3
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + noteColumns
	return scanNote(r.db.QueryRowContext(ctx, query, id, ownerID, time.Now()))
}

func (r *NoteRepository) Delete(ctx context.Context, ownerID, id int64) error {
	const query = `DELETE FROM notes WHERE id = $1 AND owner_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, ownerID)
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

// Stats aggregates counts across all of the owner's notes in one query.
// TotalTags sums tag occurrences, not distinct tags.
func (r *NoteRepository) Stats(ctx context.Context, ownerID int64) (types.NoteStats, error) {
	const query = `
		SELECT COUNT(1),
			COUNT(1) FILTER (WHERE pinned),
			COUNT(1) FILTER (WHERE archived),
			COALESCE(SUM(COALESCE(array_length(tags, 1), 0)), 0)
		FROM notes
		WHERE owner_id = $1`
	var stats types.NoteStats
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&stats.TotalNotes,
		&stats.PinnedNotes,
		&stats.ArchivedNotes,
		&stats.TotalTags,
	)
	if err != nil {
		return types.NoteStats{}, err
	}
	return stats, nil
}

// PopularTags ranks the owner's tags by occurrence count. Ties order by
// tag ascending so the ranking is deterministic.
func (r *NoteRepository) PopularTags(ctx context.Context, ownerID int64, limit int) ([]types.TagCount, error) {
	const query = `
		SELECT tag, COUNT(1) AS tag_count
		FROM notes, unnest(tags) AS tag
		WHERE owner_id = $1
		GROUP BY tag
		ORDER BY tag_count DESC, tag ASC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]types.TagCount, 0, limit)
	for rows.Next() {
		var tc types.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
