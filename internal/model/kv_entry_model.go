package model

import "time"

// KVEntry is the sqlite row backing the local key-value storage
// facility. Values are opaque strings; callers own the encoding.
type KVEntry struct {
	Key       string `gorm:"primaryKey;column:key"`
	Value     string `gorm:"column:value"`
	UpdatedAt time.Time
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
