package entity

import (
	"time"

	"github.com/google/uuid"
)

// OfflineBackupRecord is a local fallback copy of unsaved content,
// written when a save attempt cannot reach the remote store. At most one
// live record exists per document id (last write wins).
type OfflineBackupRecord struct {
	DocumentId uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}
