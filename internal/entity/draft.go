package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Draft is the in-memory buffer for the document currently open in the
// editor. At most one draft exists at a time; switching documents
// destroys the previous draft deterministically.
type Draft struct {
	DocumentId uuid.UUID
	Title      string
	Content    string

	// Last title/content pair known to be persisted. The draft is dirty
	// when current values differ from it under the dirty predicate.
	LastSavedTitle   string
	LastSavedContent string

	// OpenedAt is when the document was loaded into the editor.
	OpenedAt time.Time

	// LastRemoteUpdatedAt is the last server timestamp observed for this
	// document, either from a save reply or a realtime event. Zero if
	// never observed.
	LastRemoteUpdatedAt time.Time
}

// DirtyPredicate reports whether the current values differ meaningfully
// from the last saved snapshot. Not byte equality: callers may ignore
// whitespace-only edits.
type DirtyPredicate func(title, content, savedTitle, savedContent string) bool

// DefaultDirtyPredicate ignores leading/trailing whitespace deltas.
func DefaultDirtyPredicate(title, content, savedTitle, savedContent string) bool {
	if strings.TrimSpace(title) != strings.TrimSpace(savedTitle) {
		return true
	}
	return strings.TrimSpace(content) != strings.TrimSpace(savedContent)
}

// MarkSaved resets the dirty baseline to the persisted values.
func (d *Draft) MarkSaved(title, content string) {
	d.LastSavedTitle = title
	d.LastSavedContent = content
}

// Dirty applies the predicate to the draft's current state.
func (d *Draft) Dirty(pred DirtyPredicate) bool {
	return pred(d.Title, d.Content, d.LastSavedTitle, d.LastSavedContent)
}
