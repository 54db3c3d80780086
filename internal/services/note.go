package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dazeez1/notes-app/internal/store"
	"github.com/dazeez1/notes-app/types"
)

// NoteRepository defines persistence operations for notes. Every method
// is owner-scoped; a foreign note surfaces as store.ErrNotFound.
type NoteRepository interface {
	List(ctx context.Context, ownerID int64, filter store.NoteFilter) ([]types.Note, int64, error)
	Search(ctx context.Context, ownerID int64, query string, limit, offset int) ([]types.Note, int64, error)
	Get(ctx context.Context, ownerID, id int64) (types.Note, error)
	Create(ctx context.Context, note types.Note) (types.Note, error)
	Update(ctx context.Context, note types.Note) (types.Note, error)
	TogglePin(ctx context.Context, ownerID, id int64) (types.Note, error)
	ToggleArchive(ctx context.Context, ownerID, id int64) (types.Note, error)
	Delete(ctx context.Context, ownerID, id int64) error
	Stats(ctx context.Context, ownerID int64) (types.NoteStats, error)
	PopularTags(ctx context.Context, ownerID int64, limit int) ([]types.TagCount, error)
}

// NoteService encapsulates note use-cases: validation, listing, search,
// and aggregation.
type NoteService struct {
	repo NoteRepository
}

func NewNoteService(repo NoteRepository) *NoteService {
	return &NoteService{repo: repo}
}

const (
	maxTitleLength   = 100
	maxContentLength = 10000
	maxTagCount      = 10

	defaultListLimit = 20
	maxListLimit     = 100

	minSearchQueryLength = 2
)

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,20}$`)

// CreateNoteInput is the payload for note creation.
type CreateNoteInput struct {
	Title   string
	Content string
	Tags    []string
}

// UpdateNoteInput carries partial-update fields. Nil means "leave
// untouched"; a non-nil value replaces the field after validation.
type UpdateNoteInput struct {
	Title   *string
	Content *string
	Tags    *[]string
}

// ListNotesInput narrows and paginates a listing.
type ListNotesInput struct {
	Tags            []string
	IncludeArchived bool
	Limit           int
	Offset          int
}

func validateTitle(title string, violations []FieldViolation) []FieldViolation {
	if n := utf8.RuneCountInString(title); n < 1 || n > maxTitleLength {
		violations = append(violations, FieldViolation{Field: "noteTitle", Message: "must be 1-100 characters"})
	}
	return violations
}

func validateContent(content string, violations []FieldViolation) []FieldViolation {
	if n := utf8.RuneCountInString(content); n < 1 || n > maxContentLength {
		violations = append(violations, FieldViolation{Field: "noteContent", Message: "must be 1-10000 characters"})
	}
	return violations
}

// normalizeTags lowercases tags and validates count and shape. Duplicates
// pass through untouched; deduplication is the caller's business.
func normalizeTags(tags []string, violations []FieldViolation) ([]string, []FieldViolation) {
	if len(tags) > maxTagCount {
		violations = append(violations, FieldViolation{Field: "noteTags", Message: "at most 10 tags"})
	}
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		if !tagPattern.MatchString(tag) {
			violations = append(violations, FieldViolation{Field: "noteTags", Message: "tag " + strconv.Quote(tag) + " must be 1-20 alphanumeric or hyphen characters"})
			continue
		}
		normalized = append(normalized, strings.ToLower(tag))
	}
	return normalized, violations
}

// Create validates every field, reporting all violations at once, and
// stores the note unpinned and unarchived.
func (s *NoteService) Create(ctx context.Context, ownerID int64, input CreateNoteInput) (types.Note, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)

	var violations []FieldViolation
	violations = validateTitle(title, violations)
	violations = validateContent(content, violations)
	tags, violations := normalizeTags(input.Tags, violations)
	if err := validationError(violations); err != nil {
		return types.Note{}, err
	}

	return s.repo.Create(ctx, types.Note{
		OwnerID: ownerID,
		Title:   title,
		Content: content,
		Tags:    tags,
	})
}

// List returns one page of the owner's notes plus the total under the
// same filter. Multiple tags filter with OR semantics: a note matches
// when it carries at least one of them.
func (s *NoteService) List(ctx context.Context, ownerID int64, input ListNotesInput) ([]types.Note, int64, error) {
	limit := clampLimit(input.Limit)
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	tags := make([]string, 0, len(input.Tags))
	for _, tag := range input.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			tags = append(tags, tag)
		}
	}

	return s.repo.List(ctx, ownerID, store.NoteFilter{
		Tags:            tags,
		IncludeArchived: input.IncludeArchived,
		Limit:           limit,
		Offset:          offset,
	})
}

// Search runs a relevance-ranked full-text query over the owner's
// non-archived notes. Queries shorter than two characters after trimming
// are rejected.
func (s *NoteService) Search(ctx context.Context, ownerID int64, query string, limit, offset int) ([]types.Note, int64, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minSearchQueryLength {
		return nil, 0, ErrInvalidQuery
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.Search(ctx, ownerID, query, clampLimit(limit), offset)
}

func (s *NoteService) Get(ctx context.Context, ownerID, id int64) (types.Note, error) {
	return s.repo.Get(ctx, ownerID, id)
}

// Update applies only the provided fields; omitted ones stay as they are.
func (s *NoteService) Update(ctx context.Context, ownerID, id int64, input UpdateNoteInput) (types.Note, error) {
	note, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return types.Note{}, err
	}

	var violations []FieldViolation
	if input.Title != nil {
		note.Title = strings.TrimSpace(*input.Title)
		violations = validateTitle(note.Title, violations)
	}
	if input.Content != nil {
		note.Content = strings.TrimSpace(*input.Content)
		violations = validateContent(note.Content, violations)
	}
	if input.Tags != nil {
		note.Tags, violations = normalizeTags(*input.Tags, violations)
	}
	if err := validationError(violations); err != nil {
		return types.Note{}, err
	}

	return s.repo.Update(ctx, note)
}

// TogglePin flips the pinned flag. Two calls return the note to its
// original state, each one bumping updatedAt.
func (s *NoteService) TogglePin(ctx context.Context, ownerID, id int64) (types.Note, error) {
	return s.repo.TogglePin(ctx, ownerID, id)
}

// ToggleArchive flips the archived flag.
func (s *NoteService) ToggleArchive(ctx context.Context, ownerID, id int64) (types.Note, error) {
	return s.repo.ToggleArchive(ctx, ownerID, id)
}

func (s *NoteService) Delete(ctx context.Context, ownerID, id int64) error {
	return s.repo.Delete(ctx, ownerID, id)
}

// Stats aggregates counts over all of the owner's notes. An owner with no
// notes gets zeroes, never an error.
func (s *NoteService) Stats(ctx context.Context, ownerID int64) (types.NoteStats, error) {
	return s.repo.Stats(ctx, ownerID)
}

// PopularTags ranks tags by occurrence, ties broken by tag ascending.
func (s *NoteService) PopularTags(ctx context.Context, ownerID int64, limit int) ([]types.TagCount, error) {
	if limit < 1 {
		limit = 5
	}
	if limit > 20 {
		limit = 20
	}
	return s.repo.PopularTags(ctx, ownerID, limit)
}

func clampLimit(limit int) int {
	if limit < 1 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
