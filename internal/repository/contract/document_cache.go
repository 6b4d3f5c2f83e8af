package contract

import (
	"doc-sync-engine/internal/entity"

	"github.com/google/uuid"
)

// DocumentCache is the client-visible copy of remote records shared
// with other UI surfaces (list and detail views). Both the save path
// and the realtime path mutate it, and both funnel through Upsert's
// last-write-wins rule so the two never diverge.
type DocumentCache interface {
	// Upsert applies the record unless a strictly newer copy (by
	// UpdatedAt) is already cached. Reports whether it was applied.
	Upsert(doc entity.Document) bool
	Remove(id uuid.UUID)
	Get(id uuid.UUID) (*entity.Document, bool)
	List() []entity.Document
}
