package types

import "time"

// Note represents a single text note owned by exactly one user.
type Note struct {
	// ID is the unique identifier of the note.
	ID int64 `json:"id" db:"id"`

	// OwnerID references the user that owns the note. Every read and
	// write is filtered by this field; a note is invisible to everyone
	// but its owner.
	OwnerID int64 `json:"noteOwner" db:"owner_id"`

	// Title is the required note title, 1-100 characters after trimming.
	Title string `json:"noteTitle" db:"title"`

	// Content is the note body, 1-10000 characters after trimming.
	Content string `json:"noteContent" db:"content"`

	// Tags are short lowercase labels attached to the note. At most 10,
	// each 1-20 characters of letters, digits, and hyphens. Duplicates
	// are allowed; order carries no meaning.
	Tags []string `json:"noteTags" db:"tags"`

	// Pinned notes sort before unpinned ones in listings.
	Pinned bool `json:"isNotePinned" db:"pinned"`

	// Archived notes are hidden from listings and search unless the
	// caller asks for them explicitly.
	Archived bool `json:"isNoteArchived" db:"archived"`

	// CreatedAt is the timestamp at which the note was created.
	CreatedAt time.Time `json:"noteCreatedAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent mutation, including
	// pin and archive toggles.
	UpdatedAt time.Time `json:"noteUpdatedAt" db:"updated_at"`
}

// NoteStats aggregates counts across all notes of one owner. A user with
// no notes gets a zeroed value, never a missing one.
type NoteStats struct {
	// TotalNotes is the number of notes the owner has, archived included.
	TotalNotes int64 `json:"totalNotes"`

	// PinnedNotes is the number of currently pinned notes.
	PinnedNotes int64 `json:"pinnedNotes"`

	// ArchivedNotes is the number of currently archived notes.
	ArchivedNotes int64 `json:"archivedNotes"`

	// TotalTags is the sum of tag occurrences across all notes, not the
	// number of distinct tags. A note tagged ["a", "a"] contributes 2.
	TotalTags int64 `json:"totalTags"`
}

// TagCount is one entry of a tag frequency ranking.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// Attachment is the metadata row for a binary object attached to a note.
// The object bytes live in object storage under ObjectKey.
type Attachment struct {
	// ID is the unique identifier of the attachment.
	ID int64 `json:"id" db:"id"`

	// NoteID references the owning note. Access control goes through the
	// note; there is no separate attachment ownership.
	NoteID int64 `json:"noteId" db:"note_id"`

	// FileName is the client-supplied name of the uploaded file.
	FileName string `json:"fileName" db:"file_name"`

	// ContentType is the MIME type reported at upload time.
	ContentType string `json:"contentType" db:"content_type"`

	// SizeBytes is the object size in bytes.
	SizeBytes int64 `json:"sizeBytes" db:"size_bytes"`

	// ObjectKey is the key of the object in the configured bucket.
	ObjectKey string `json:"-" db:"object_key"`

	// CreatedAt is the timestamp at which the attachment was uploaded.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
