package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	JTI    string
}

// AccessTokenClaims represents the bearer token issued by the auth service.
// Some issuers put the account in "sub", others in "user_id".
type AccessTokenClaims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Account returns the account identifier carried by the token.
func (c *AccessTokenClaims) Account() string {
	if c == nil {
		return ""
	}
	if sub := strings.TrimSpace(c.Subject); sub != "" {
		return sub
	}
	return strings.TrimSpace(c.UserID)
}
