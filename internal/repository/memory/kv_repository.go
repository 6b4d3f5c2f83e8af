package memory

import (
	"strings"
	"sync"

	"doc-sync-engine/internal/repository/contract"
)

// KVRepository is the in-memory local storage used by tests and by the
// daemon when no storage path is configured.
type KVRepository struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewKVRepository() contract.KVRepository {
	return &KVRepository{entries: make(map[string]string)}
}

func (r *KVRepository) Get(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

func (r *KVRepository) Set(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
}

func (r *KVRepository) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

func (r *KVRepository) Keys(prefix string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var keys []string
	for k := range r.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}
