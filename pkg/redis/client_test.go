package redis

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestEntryLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock, namespace: "tests"}

	if err := client.SetEntry(ctx, "guestCart", []byte(`[{"productId":"P1"}]`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, err := client.GetEntry(ctx, "guestCart")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(value) != `[{"productId":"P1"}]` {
		t.Fatalf("unexpected value %q", value)
	}

	if err := client.DelEntry(ctx, "guestCart"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := client.GetEntry(ctx, "guestCart"); !IsNil(err) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestEntryKeysStripNamespace(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock, namespace: "tests"}
	other := &Client{store: mock, namespace: "other"}

	for _, key := range []string{"guestCart", "userWishlist"} {
		if err := client.SetEntry(ctx, key, []byte("[]")); err != nil {
			t.Fatalf("set %s failed: %v", key, err)
		}
	}
	if err := other.SetEntry(ctx, "guestCart", []byte("[]")); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	keys, err := client.EntryKeys(ctx)
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "guestCart" || keys[1] != "userWishlist" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestStoreKey(t *testing.T) {
	client := &Client{namespace: "device-1"}
	if got := client.StoreKey("authToken"); got != "cartsync:store:device-1:authToken" {
		t.Fatalf("unexpected store key %s", got)
	}
	if got := client.StoreKey(""); got != "cartsync:store:device-1:" {
		t.Fatalf("unexpected prefix %s", got)
	}
	empty := &Client{}
	if got := empty.StoreKey("k"); got != "cartsync:store:k" {
		t.Fatalf("namespace-less key should skip empty parts, got %s", got)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if _, err := client.GetEntry(context.Background(), "k"); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil raw client should be a no-op: %v", err)
	}
}

func TestErrorClassifiers(t *testing.T) {
	if !IsNil(redis.Nil) {
		t.Fatal("expected redis.Nil to be classified as missing")
	}
	if IsNil(errors.New("boom")) {
		t.Fatal("unexpected nil classification")
	}
	if !IsOutOfMemory(errors.New("OOM command not allowed when used memory > 'maxmemory'.")) {
		t.Fatal("expected OOM classification")
	}
	if IsOutOfMemory(nil) {
		t.Fatal("nil error is not OOM")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected missing address to fail")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/3", PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 3 || opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Keys(ctx context.Context, pattern string) *redis.StringSliceCmd {
	prefix := strings.TrimSuffix(pattern, "*")
	out := []string{}
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return redis.NewStringSliceResult(out, nil)
}
