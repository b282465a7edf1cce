package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App    AppConfig
	Store  StoreConfig
	Redis  RedisConfig
	Remote RemoteConfig
	Sync   SyncConfig
	JWT    JWTConfig
	Mock   MockConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	backend, err := enums.ParseStoreBackend(strings.ToLower(strings.TrimSpace(c.Store.Backend)))
	if err != nil {
		return err
	}
	if backend == enums.StoreBackendRedis && c.Redis.URL == "" && c.Redis.Address == "" {
		return fmt.Errorf("either %s or %s is required for the redis store backend", EnvRedisURL, EnvRedisAddr)
	}
	if (backend == enums.StoreBackendSQLite || backend == enums.StoreBackendPostgres) && strings.TrimSpace(c.Store.DSN) == "" {
		return fmt.Errorf("%s is required for the %s store backend", EnvStoreDSN, backend)
	}
	timeouts := map[string]time.Duration{
		EnvCartMutationTimeout:     c.Remote.CartMutationTimeout,
		EnvCartFetchTimeout:        c.Remote.CartFetchTimeout,
		EnvWishlistMutationTimeout: c.Remote.WishlistMutationTimeout,
		EnvWishlistFetchTimeout:    c.Remote.WishlistFetchTimeout,
	}
	for name, value := range timeouts {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"CARTSYNC_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"CARTSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARTSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StoreConfig struct {
	Backend      string `envconfig:"CARTSYNC_STORE_BACKEND" default:"sqlite"`
	DSN          string `envconfig:"CARTSYNC_STORE_DSN" default:"file:cartsync.db"`
	Namespace    string `envconfig:"CARTSYNC_STORE_NAMESPACE" default:"default"`
	QuotaBytes   int    `envconfig:"CARTSYNC_STORE_QUOTA_BYTES" default:"5242880"`
	AuthTokenKey string `envconfig:"CARTSYNC_AUTH_TOKEN_KEY" default:"authToken"`

	MaxOpenConns    int           `envconfig:"CARTSYNC_STORE_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"CARTSYNC_STORE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"CARTSYNC_STORE_CONN_MAX_LIFETIME" default:"1h"`
}

// BackendKind returns the normalized backend, defaulting to sqlite.
func (s StoreConfig) BackendKind() enums.StoreBackend {
	backend, err := enums.ParseStoreBackend(strings.ToLower(strings.TrimSpace(s.Backend)))
	if err != nil {
		return enums.StoreBackendSQLite
	}
	return backend
}

type RedisConfig struct {
	URL          string        `envconfig:"CARTSYNC_REDIS_URL"`
	Address      string        `envconfig:"CARTSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"CARTSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARTSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARTSYNC_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"CARTSYNC_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"CARTSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARTSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARTSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type RemoteConfig struct {
	BaseURL                 string        `envconfig:"CARTSYNC_API_BASE_URL" required:"true"`
	CartMutationTimeout     time.Duration `envconfig:"CARTSYNC_CART_MUTATION_TIMEOUT" default:"8s"`
	CartFetchTimeout        time.Duration `envconfig:"CARTSYNC_CART_FETCH_TIMEOUT" default:"25s"`
	WishlistMutationTimeout time.Duration `envconfig:"CARTSYNC_WISHLIST_MUTATION_TIMEOUT" default:"5s"`
	WishlistFetchTimeout    time.Duration `envconfig:"CARTSYNC_WISHLIST_FETCH_TIMEOUT" default:"25s"`
}

type SyncConfig struct {
	AddThrottle       time.Duration `envconfig:"CARTSYNC_ADD_THROTTLE" default:"700ms"`
	QuantityDebounce  time.Duration `envconfig:"CARTSYNC_QUANTITY_DEBOUNCE" default:"500ms"`
	MergeCallDelay    time.Duration `envconfig:"CARTSYNC_MERGE_CALL_DELAY" default:"150ms"`
	ReconcileInterval time.Duration `envconfig:"CARTSYNC_RECONCILE_INTERVAL" default:"60s"`
	WatchInterval     time.Duration `envconfig:"CARTSYNC_WATCH_INTERVAL" default:"2s"`
}

// JWTConfig controls auth token inspection. The token is issued by an external
// auth service; without a secret only expiry and subject are read.
type JWTConfig struct {
	Secret string `envconfig:"CARTSYNC_JWT_SECRET"`
	Issuer string `envconfig:"CARTSYNC_JWT_ISSUER"`
}

// VerifiesSignature reports whether tokens are checked against the shared secret.
func (j JWTConfig) VerifiesSignature() bool {
	return strings.TrimSpace(j.Secret) != ""
}

type MockConfig struct {
	Port string `envconfig:"CARTSYNC_MOCK_PORT" default:"8089"`
}
