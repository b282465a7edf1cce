package localstore

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/config"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/db"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/migrate"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/redis"
)

// OpenBackend builds the backend selected by cfg.Store. SQL backends are
// migrated before use. The returned close func releases the connection.
func OpenBackend(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Backend, func() error, error) {
	noop := func() error { return nil }

	switch backend := cfg.Store.BackendKind(); backend {
	case enums.StoreBackendMemory:
		return NewMemoryBackend(cfg.Store.QuotaBytes), noop, nil

	case enums.StoreBackendSQLite, enums.StoreBackendPostgres:
		client, err := db.New(ctx, cfg.Store, logg)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := client.DB().DB()
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("extracting sql.DB: %w", err)
		}
		if err := migrate.Run(ctx, sqlDB, backend, "up"); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		store, err := NewGormBackend(client, cfg.Store.Namespace, cfg.Store.QuotaBytes)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, client.Close, nil

	case enums.StoreBackendRedis:
		client, err := redis.New(ctx, cfg.Redis, cfg.Store.Namespace, logg)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewRedisBackend(client)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store backend %s", backend)
	}
}
