// Package remote defines the contract for the remote persistence store
// that owns document records. The engine never talks to a concrete
// backend directly; an implementation is injected so tests can
// substitute fakes.
package remote

import (
	"context"

	"doc-sync-engine/internal/dto"
	"doc-sync-engine/internal/entity"

	"github.com/google/uuid"
)

type IDocumentAPI interface {
	// CreateDocument persists a new record and returns it with the
	// canonical server timestamp.
	CreateDocument(ctx context.Context, req *dto.CreateDocumentRequest) (*entity.Document, error)

	// UpdateDocument persists changed fields and returns the canonical
	// record. A version mismatch surfaces as *ConflictError; failure to
	// reach the store surfaces as *NetworkError.
	UpdateDocument(ctx context.Context, id uuid.UUID, req *dto.UpdateDocumentRequest) (*entity.Document, error)

	DeleteDocument(ctx context.Context, id uuid.UUID) error
}
