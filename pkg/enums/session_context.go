package enums

import "fmt"

// SessionContext identifies which cart/wishlist state is active for rendering.
type SessionContext string

const (
	SessionContextGuest         SessionContext = "guest"
	SessionContextAuthenticated SessionContext = "authenticated"
)

var validSessionContexts = []SessionContext{
	SessionContextGuest,
	SessionContextAuthenticated,
}

// String implements fmt.Stringer.
func (s SessionContext) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SessionContext.
func (s SessionContext) IsValid() bool {
	for _, candidate := range validSessionContexts {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSessionContext converts raw input into a SessionContext.
func ParseSessionContext(value string) (SessionContext, error) {
	for _, candidate := range validSessionContexts {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session context %q", value)
}
