package memory

import (
	"sync"

	"doc-sync-engine/internal/entity"
	"doc-sync-engine/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// DocumentCache keeps the client-visible document copies in a go-cache
// store. Entries never expire; they are evicted only by explicit Remove
// (remote delete) so list views stay stable while the app runs.
type DocumentCache struct {
	// mu serializes the read-compare-write in Upsert; go-cache alone
	// cannot enforce last-write-wins.
	mu    sync.Mutex
	store *cache.Cache
}

func NewDocumentCache() contract.DocumentCache {
	return &DocumentCache{store: cache.New(cache.NoExpiration, 0)}
}

func (c *DocumentCache) Upsert(doc entity.Document) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if x, found := c.store.Get(doc.Id.String()); found {
		existing := x.(entity.Document)
		if existing.UpdatedAt.After(doc.UpdatedAt) {
			return false
		}
	}
	c.store.Set(doc.Id.String(), doc, cache.NoExpiration)
	return true
}

func (c *DocumentCache) Remove(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(id.String())
}

func (c *DocumentCache) Get(id uuid.UUID) (*entity.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if x, found := c.store.Get(id.String()); found {
		doc := x.(entity.Document)
		return &doc, true
	}
	return nil, false
}

func (c *DocumentCache) List() []entity.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.store.Items()
	docs := make([]entity.Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, item.Object.(entity.Document))
	}
	return docs
}
