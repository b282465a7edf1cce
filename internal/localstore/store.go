// Package localstore is the durable key/value layer under the cart and
// wishlist engines. Reads never fail upward: a missing or unreadable value is
// reported as absent. Writes never fail upward either: on quota exhaustion the
// payload is shrunk step by step and, as a last resort, dropped with a log line.
package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/metrics"
)

// WriteStage reports which payload a Set ended up persisting.
type WriteStage string

const (
	StageFull      WriteStage = "full"
	StageEssential WriteStage = "essential"
	StageIDsOnly   WriteStage = "ids_only"
	StageDropped   WriteStage = "dropped"
)

// Shrinkable values offer the reduced projections used under quota pressure.
type Shrinkable interface {
	Essential() any
	IDsOnly() any
}

type writeAttempt struct {
	stage   WriteStage
	payload any
}

// Params groups dependencies for Store.
type Params struct {
	Backend Backend
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// Store is the typed JSON layer over a Backend.
type Store struct {
	backend Backend
	logg    *logger.Logger
	metrics *metrics.SyncMetrics

	mu           sync.Mutex
	fingerprints map[string]uint64
}

func New(params Params) (*Store, error) {
	if params.Backend == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store backend is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &Store{
		backend:      params.Backend,
		logg:         params.Logger,
		metrics:      params.Metrics,
		fingerprints: make(map[string]uint64),
	}, nil
}

// Get decodes the value at key into dest and reports whether it was present.
// A value that fails to decode is removed so the next read starts clean.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	ctx = s.logg.WithField(ctx, "store_key", key)

	raw, err := s.backend.Read(ctx, key)
	if errors.Is(err, ErrNotFound) {
		s.remember(key, nil)
		return false
	}
	if err != nil {
		s.logg.Error(ctx, "local store read failed", err)
		return false
	}
	s.remember(key, raw)

	if err := json.Unmarshal(raw, dest); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("discarding unreadable value: %v", pkgerrors.Wrap(pkgerrors.CodeParse, err, "decode stored value")))
		s.metrics.IncStoreFallback("parse_reset")
		if delErr := s.backend.Delete(ctx, key); delErr != nil {
			s.logg.Error(ctx, "failed to clear unreadable value", delErr)
		}
		s.remember(key, nil)
		return false
	}
	return true
}

// Set persists value at key. Values implementing Shrinkable are retried with
// smaller projections when the backend reports quota exhaustion.
func (s *Store) Set(ctx context.Context, key string, value any) WriteStage {
	ctx = s.logg.WithField(ctx, "store_key", key)

	attempts := []writeAttempt{{StageFull, value}}
	if shrinkable, ok := value.(Shrinkable); ok {
		attempts = append(attempts,
			writeAttempt{StageEssential, shrinkable.Essential()},
			writeAttempt{StageIDsOnly, shrinkable.IDsOnly()},
		)
	}

	for _, attempt := range attempts {
		raw, err := json.Marshal(attempt.payload)
		if err != nil {
			s.logg.Error(ctx, "local store encode failed", err)
			return StageDropped
		}
		err = s.backend.Write(ctx, key, raw)
		if err == nil {
			s.remember(key, raw)
			if attempt.stage != StageFull {
				s.metrics.IncStoreFallback(string(attempt.stage))
				s.logg.Warn(s.logg.WithField(ctx, "stage", string(attempt.stage)), "local store quota reached; persisted reduced payload")
			}
			return attempt.stage
		}
		if !errors.Is(err, ErrQuotaExceeded) {
			s.logg.Error(ctx, "local store write failed", err)
			s.metrics.IncStoreFallback(string(StageDropped))
			return StageDropped
		}
	}

	s.metrics.IncStoreFallback(string(StageDropped))
	s.logg.Error(ctx, "local store quota exhausted; change kept in memory only",
		pkgerrors.New(pkgerrors.CodeStorageQuota, "payload does not fit even as ids"))
	return StageDropped
}

// Remove deletes key. Removing a missing key is a no-op.
func (s *Store) Remove(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "store_key", key), "local store remove failed", err)
		return
	}
	s.remember(key, nil)
}

// ReadString returns a raw string value written by another component, such as
// the auth token. JSON-quoted values are unquoted.
func (s *Store) ReadString(ctx context.Context, key string) (string, bool) {
	raw, err := s.backend.Read(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logg.Error(s.logg.WithField(ctx, "store_key", key), "local store read failed", err)
		}
		return "", false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var value string
		if err := json.Unmarshal(raw, &value); err == nil {
			return value, value != ""
		}
	}
	value := strings.TrimSpace(string(raw))
	return value, value != ""
}

// WriteString stores a raw string. Only tooling that stands in for the auth
// service writes through this.
func (s *Store) WriteString(ctx context.Context, key, value string) error {
	return s.backend.Write(ctx, key, []byte(value))
}

// Keys lists every persisted key.
func (s *Store) Keys(ctx context.Context) []string {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		s.logg.Error(ctx, "local store key listing failed", err)
		return nil
	}
	return keys
}

// Snapshot returns the fingerprint of each key as currently persisted. Missing
// keys map to zero.
func (s *Store) Snapshot(ctx context.Context, keys ...string) map[string]uint64 {
	out := make(map[string]uint64, len(keys))
	for _, key := range keys {
		raw, err := s.backend.Read(ctx, key)
		if err != nil {
			out[key] = 0
			continue
		}
		out[key] = fingerprint(raw)
	}
	return out
}

// Changed returns the keys whose persisted value differs from what this Store
// last read or wrote, i.e. keys modified by another process.
func (s *Store) Changed(ctx context.Context, keys ...string) []string {
	current := s.Snapshot(ctx, keys...)

	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []string
	for _, key := range keys {
		if s.fingerprints[key] != current[key] {
			changed = append(changed, key)
			s.fingerprints[key] = current[key]
		}
	}
	return changed
}

func (s *Store) remember(key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if raw == nil {
		s.fingerprints[key] = 0
		return
	}
	s.fingerprints[key] = fingerprint(raw)
}

func fingerprint(raw []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(raw)
	sum := h.Sum64()
	if sum == 0 {
		return 1
	}
	return sum
}
