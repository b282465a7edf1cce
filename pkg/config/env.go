package config

// EnvPrefix is handed to envconfig; every field carries an explicit name so it only
// matters for error messages.
const EnvPrefix = "CARTSYNC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                  = "CARTSYNC_APP_ENV"
	EnvLogLevel                = "CARTSYNC_LOG_LEVEL"
	EnvStoreBackend            = "CARTSYNC_STORE_BACKEND"
	EnvStoreDSN                = "CARTSYNC_STORE_DSN"
	EnvStoreQuotaBytes         = "CARTSYNC_STORE_QUOTA_BYTES"
	EnvRedisURL                = "CARTSYNC_REDIS_URL"
	EnvRedisAddr               = "CARTSYNC_REDIS_ADDR"
	EnvAPIBaseURL              = "CARTSYNC_API_BASE_URL"
	EnvCartMutationTimeout     = "CARTSYNC_CART_MUTATION_TIMEOUT"
	EnvCartFetchTimeout        = "CARTSYNC_CART_FETCH_TIMEOUT"
	EnvWishlistMutationTimeout = "CARTSYNC_WISHLIST_MUTATION_TIMEOUT"
	EnvWishlistFetchTimeout    = "CARTSYNC_WISHLIST_FETCH_TIMEOUT"
	EnvAddThrottle             = "CARTSYNC_ADD_THROTTLE"
	EnvJWTSecret               = "CARTSYNC_JWT_SECRET"
)
