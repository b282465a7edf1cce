package enums

import "fmt"

// StoreBackend selects the durable key/value persistence behind LocalStore.
type StoreBackend string

const (
	StoreBackendMemory   StoreBackend = "memory"
	StoreBackendSQLite   StoreBackend = "sqlite"
	StoreBackendPostgres StoreBackend = "postgres"
	StoreBackendRedis    StoreBackend = "redis"
)

var validStoreBackends = []StoreBackend{
	StoreBackendMemory,
	StoreBackendSQLite,
	StoreBackendPostgres,
	StoreBackendRedis,
}

// String implements fmt.Stringer.
func (s StoreBackend) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StoreBackend.
func (s StoreBackend) IsValid() bool {
	for _, candidate := range validStoreBackends {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStoreBackend converts raw input into a StoreBackend.
func ParseStoreBackend(value string) (StoreBackend, error) {
	for _, candidate := range validStoreBackends {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid store backend %q", value)
}
