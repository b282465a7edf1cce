package localstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/db"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBackend persists entries in the store_entries table (sqlite or postgres).
// The quota is enforced per namespace inside the write transaction.
type GormBackend struct {
	client    *db.Client
	namespace string
	quota     int
}

func NewGormBackend(client *db.Client, namespace string, quotaBytes int) (*GormBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	return &GormBackend{client: client, namespace: namespace, quota: quotaBytes}, nil
}

func (g *GormBackend) Read(ctx context.Context, key string) ([]byte, error) {
	var entry models.StoreEntry
	err := g.client.DB().WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", g.namespace, key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(entry.Value), nil
}

func (g *GormBackend) Write(ctx context.Context, key string, value []byte) error {
	err := g.client.WithTx(ctx, func(tx *gorm.DB) error {
		if g.quota > 0 {
			var used int64
			if err := tx.Model(&models.StoreEntry{}).
				Where("namespace = ? AND entry_key <> ?", g.namespace, key).
				Select("COALESCE(SUM(size_bytes), 0)").
				Scan(&used).Error; err != nil {
				return err
			}
			if int(used)+len(key)+len(value) > g.quota {
				return ErrQuotaExceeded
			}
		}
		entry := models.StoreEntry{
			Namespace: g.namespace,
			Key:       key,
			Value:     string(value),
			SizeBytes: len(key) + len(value),
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "size_bytes", "updated_at"}),
		}).Create(&entry).Error
	})
	if err != nil && isDatabaseFull(err) {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

func (g *GormBackend) Delete(ctx context.Context, key string) error {
	return g.client.DB().WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", g.namespace, key).
		Delete(&models.StoreEntry{}).Error
}

func (g *GormBackend) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := g.client.DB().WithContext(ctx).
		Model(&models.StoreEntry{}).
		Where("namespace = ?", g.namespace).
		Order("entry_key").
		Pluck("entry_key", &keys).Error
	return keys, err
}
