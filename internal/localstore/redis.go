package localstore

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/redis"
)

// EntryClient is the part of the redis client used by RedisBackend.
type EntryClient interface {
	GetEntry(ctx context.Context, key string) ([]byte, error)
	SetEntry(ctx context.Context, key string, value []byte) error
	DelEntry(ctx context.Context, key string) error
	EntryKeys(ctx context.Context) ([]string, error)
}

// RedisBackend persists entries as namespaced redis strings. The quota is the
// server's maxmemory; an OOM rejection maps to ErrQuotaExceeded.
type RedisBackend struct {
	client EntryClient
}

func NewRedisBackend(client EntryClient) (*RedisBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisBackend{client: client}, nil
}

func (r *RedisBackend) Read(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.GetEntry(ctx, key)
	if redis.IsNil(err) {
		return nil, ErrNotFound
	}
	return value, err
}

func (r *RedisBackend) Write(ctx context.Context, key string, value []byte) error {
	err := r.client.SetEntry(ctx, key, value)
	if redis.IsOutOfMemory(err) {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.DelEntry(ctx, key)
}

func (r *RedisBackend) Keys(ctx context.Context) ([]string, error) {
	return r.client.EntryKeys(ctx)
}
