package models

import "time"

// StoreEntry persists one local store key as raw JSON.
type StoreEntry struct {
	Namespace string    `gorm:"column:namespace;primaryKey"`
	Key       string    `gorm:"column:entry_key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	SizeBytes int       `gorm:"column:size_bytes;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (StoreEntry) TableName() string {
	return "store_entries"
}
