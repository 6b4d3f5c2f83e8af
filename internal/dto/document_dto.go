package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateDocumentRequest struct {
	Title    string     `json:"title" validate:"required"`
	Content  string     `json:"content"`
	FolderId *uuid.UUID `json:"folder_id,omitempty"`
}

type UpdateDocumentRequest struct {
	Title    string     `json:"title" validate:"required"`
	Content  string     `json:"content"`
	Pinned   *bool      `json:"pinned,omitempty"`
	FolderId *uuid.UUID `json:"folder_id,omitempty"`

	// BaseUpdatedAt carries the client's last known server timestamp so
	// the store can reject stale writes with a version mismatch.
	BaseUpdatedAt *time.Time `json:"base_updated_at,omitempty"`
}
