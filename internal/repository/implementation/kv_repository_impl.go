package implementation

import (
	"errors"

	"doc-sync-engine/internal/model"
	"doc-sync-engine/internal/pkg/logger"
	"doc-sync-engine/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVRepositoryImpl persists key-value entries in the local sqlite file.
// Storage failures are logged and swallowed: the engine treats local
// storage as best-effort and must never crash on it.
type KVRepositoryImpl struct {
	db     *gorm.DB
	logger logger.ILogger
}

func NewKVRepository(db *gorm.DB, log logger.ILogger) contract.KVRepository {
	return &KVRepositoryImpl{db: db, logger: log}
}

func (r *KVRepositoryImpl) Get(key string) (string, bool) {
	var entry model.KVEntry
	err := r.db.First(&entry, "key = ?", key).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Warn("KVRepository", "Read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return "", false
	}
	return entry.Value, true
}

func (r *KVRepositoryImpl) Set(key, value string) {
	entry := model.KVEntry{Key: key, Value: value}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		r.logger.Warn("KVRepository", "Write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (r *KVRepositoryImpl) Remove(key string) {
	if err := r.db.Delete(&model.KVEntry{}, "key = ?", key).Error; err != nil {
		r.logger.Warn("KVRepository", "Delete failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (r *KVRepositoryImpl) Keys(prefix string) []string {
	var keys []string
	err := r.db.Model(&model.KVEntry{}).
		Where("key LIKE ?", prefix+"%").
		Pluck("key", &keys).Error
	if err != nil {
		r.logger.Warn("KVRepository", "Key scan failed", map[string]interface{}{"prefix": prefix, "error": err.Error()})
		return nil
	}
	return keys
}
