package service

import (
	"encoding/json"
	"sort"

	"doc-sync-engine/internal/config"
	"doc-sync-engine/internal/entity"
	"doc-sync-engine/internal/pkg/logger"
	"doc-sync-engine/internal/repository/contract"
	"doc-sync-engine/pkg/clock"

	"github.com/google/uuid"
)

const backupKeyPrefix = "backup:"

type IBackupService interface {
	Put(documentId uuid.UUID, title, content string)
	Get(documentId uuid.UUID) (*entity.OfflineBackupRecord, bool)
	Remove(documentId uuid.UUID)
	ListAll() []entity.OfflineBackupRecord
	// StartGC arms the periodic sweep that drops entries older than the
	// retention window.
	StartGC()
	StopGC()
}

// backupService keeps at most one live backup per document id in the
// local key-value store (last write wins). Malformed entries are
// discarded and removed rather than propagated.
type backupService struct {
	kv     contract.KVRepository
	clk    clock.Clock
	logger logger.ILogger
	cfg    config.BackupConfig
	ticker clock.Ticker
}

func NewBackupService(kv contract.KVRepository, clk clock.Clock, log logger.ILogger, cfg config.BackupConfig) IBackupService {
	return &backupService{
		kv:     kv,
		clk:    clk,
		logger: log,
		cfg:    cfg,
	}
}

func backupKey(id uuid.UUID) string {
	return backupKeyPrefix + id.String()
}

func (s *backupService) Put(documentId uuid.UUID, title, content string) {
	record := entity.OfflineBackupRecord{
		DocumentId: documentId,
		Title:      title,
		Content:    content,
		Timestamp:  s.clk.Now(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Error("BackupService", "Failed to encode backup", map[string]interface{}{"document_id": documentId, "error": err.Error()})
		return
	}
	s.kv.Set(backupKey(documentId), string(data))
	s.logger.Info("BackupService", "Backup written", map[string]interface{}{"document_id": documentId})
}

func (s *backupService) Get(documentId uuid.UUID) (*entity.OfflineBackupRecord, bool) {
	raw, ok := s.kv.Get(backupKey(documentId))
	if !ok {
		return nil, false
	}
	record, ok := s.decode(backupKey(documentId), raw)
	if !ok {
		return nil, false
	}
	return record, true
}

func (s *backupService) Remove(documentId uuid.UUID) {
	s.kv.Remove(backupKey(documentId))
}

func (s *backupService) ListAll() []entity.OfflineBackupRecord {
	keys := s.kv.Keys(backupKeyPrefix)
	records := make([]entity.OfflineBackupRecord, 0, len(keys))
	for _, key := range keys {
		raw, ok := s.kv.Get(key)
		if !ok {
			continue
		}
		record, ok := s.decode(key, raw)
		if !ok {
			continue
		}
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records
}

// decode self-heals from corrupted entries: a record that does not
// parse is deleted so it cannot poison future scans.
func (s *backupService) decode(key, raw string) (*entity.OfflineBackupRecord, bool) {
	var record entity.OfflineBackupRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil || record.DocumentId == uuid.Nil {
		s.logger.Warn("BackupService", "Discarding corrupted backup entry", map[string]interface{}{"key": key})
		s.kv.Remove(key)
		return nil, false
	}
	return &record, true
}

func (s *backupService) StartGC() {
	if s.ticker != nil {
		return
	}
	s.ticker = s.clk.TickerFunc(s.cfg.GCInterval, s.sweep)
}

func (s *backupService) StopGC() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *backupService) sweep() {
	cutoff := s.clk.Now().Add(-s.cfg.Retention)
	for _, record := range s.ListAll() {
		if record.Timestamp.Before(cutoff) {
			s.Remove(record.DocumentId)
			s.logger.Info("BackupService", "Expired backup removed", map[string]interface{}{"document_id": record.DocumentId})
		}
	}
}
