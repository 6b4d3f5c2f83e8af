package service

import (
	"testing"
	"time"

	"doc-sync-engine/internal/config"
	"doc-sync-engine/internal/repository/memory"
	"doc-sync-engine/pkg/clock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackupHarness() (*clock.Fake, IBackupService, *memory.KVRepository) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	kv := memory.NewKVRepository().(*memory.KVRepository)
	svc := NewBackupService(kv, clk, testLogger{}, config.BackupConfig{
		Retention:  7 * 24 * time.Hour,
		GCInterval: time.Hour,
	})
	return clk, svc, kv
}

func TestBackupPutOverwritesPerDocument(t *testing.T) {
	clk, svc, _ := newBackupHarness()
	id := uuid.New()

	svc.Put(id, "Draft", "v1")
	clk.Advance(time.Minute)
	svc.Put(id, "Draft", "v2")

	record, ok := svc.Get(id)
	require.True(t, ok)
	assert.Equal(t, "v2", record.Content, "one live backup per document, last write wins")
	assert.Len(t, svc.ListAll(), 1)
}

func TestBackupListAllSortsByTimestamp(t *testing.T) {
	clk, svc, _ := newBackupHarness()
	first := uuid.New()
	second := uuid.New()

	svc.Put(first, "A", "earlier")
	clk.Advance(time.Hour)
	svc.Put(second, "B", "later")

	records := svc.ListAll()
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0].DocumentId)
	assert.Equal(t, second, records[1].DocumentId)
}

func TestBackupCorruptedEntryIsDiscarded(t *testing.T) {
	_, svc, kv := newBackupHarness()
	id := uuid.New()

	kv.Set("backup:"+id.String(), "{not json")

	_, ok := svc.Get(id)
	assert.False(t, ok)

	// Self-healed: the poisoned entry is gone from the store.
	_, ok = kv.Get("backup:" + id.String())
	assert.False(t, ok)
	assert.Empty(t, svc.ListAll())
}

func TestBackupGCExpiresOldEntries(t *testing.T) {
	clk, svc, _ := newBackupHarness()
	old := uuid.New()
	fresh := uuid.New()

	svc.Put(old, "Old", "stale")
	svc.StartGC()
	defer svc.StopGC()

	clk.Advance(6 * 24 * time.Hour)
	svc.Put(fresh, "Fresh", "recent")
	require.Len(t, svc.ListAll(), 2)

	// Crossing the retention horizon removes only the stale entry.
	clk.Advance(2 * 24 * time.Hour)
	records := svc.ListAll()
	require.Len(t, records, 1)
	assert.Equal(t, fresh, records[0].DocumentId)
}
