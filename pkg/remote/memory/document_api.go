// Package memory provides an in-process IDocumentAPI used by the demo
// daemon and the test suite.
package memory

import (
	"context"
	"sync"

	"doc-sync-engine/internal/dto"
	"doc-sync-engine/internal/entity"
	"doc-sync-engine/pkg/clock"
	"doc-sync-engine/pkg/remote"

	"github.com/google/uuid"
)

type DocumentAPI struct {
	mu    sync.Mutex
	clk   clock.Clock
	docs  map[uuid.UUID]entity.Document
	fail  error
	calls int
}

func NewDocumentAPI(clk clock.Clock) *DocumentAPI {
	return &DocumentAPI{
		clk:  clk,
		docs: make(map[uuid.UUID]entity.Document),
	}
}

// FailWith makes every subsequent call return err until cleared with nil.
func (a *DocumentAPI) FailWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail = err
}

// Calls reports how many persistence calls were attempted.
func (a *DocumentAPI) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Seed installs a record directly, bypassing failure injection.
func (a *DocumentAPI) Seed(doc entity.Document) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.docs[doc.Id] = doc
}

// Get returns the stored record, for test assertions.
func (a *DocumentAPI) Get(id uuid.UUID) (entity.Document, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	doc, ok := a.docs[id]
	return doc, ok
}

func (a *DocumentAPI) CreateDocument(ctx context.Context, req *dto.CreateDocumentRequest) (*entity.Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.fail != nil {
		return nil, a.fail
	}
	doc := entity.Document{
		Id:        uuid.New(),
		Title:     req.Title,
		Content:   req.Content,
		FolderId:  req.FolderId,
		UpdatedAt: a.clk.Now(),
	}
	a.docs[doc.Id] = doc
	out := doc
	return &out, nil
}

func (a *DocumentAPI) UpdateDocument(ctx context.Context, id uuid.UUID, req *dto.UpdateDocumentRequest) (*entity.Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.fail != nil {
		return nil, a.fail
	}
	doc, ok := a.docs[id]
	if !ok {
		doc = entity.Document{Id: id}
	}
	if ok && req.BaseUpdatedAt != nil && !req.BaseUpdatedAt.Equal(doc.UpdatedAt) {
		server := doc
		return nil, &remote.ConflictError{
			DocumentId:      id,
			ServerUpdatedAt: doc.UpdatedAt,
			ServerDocument:  &server,
		}
	}
	doc.Title = req.Title
	doc.Content = req.Content
	if req.Pinned != nil {
		doc.Pinned = *req.Pinned
	}
	if req.FolderId != nil {
		doc.FolderId = req.FolderId
	}
	doc.UpdatedAt = a.clk.Now()
	a.docs[id] = doc
	out := doc
	return &out, nil
}

func (a *DocumentAPI) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.fail != nil {
		return a.fail
	}
	delete(a.docs, id)
	return nil
}
