package localstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a Backend when the key has never been written or was removed.
	ErrNotFound = errors.New("local store key not found")
	// ErrQuotaExceeded is returned by a Backend when the write would exceed its capacity.
	ErrQuotaExceeded = errors.New("local store quota exceeded")
)

// Backend is the raw key/value persistence under Store.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}
