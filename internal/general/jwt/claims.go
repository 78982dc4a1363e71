package jwt

import (
	"time"

	"geotrack/internal/domain/access"
	"geotrack/internal/general/contracts"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped on every token and required when parsing.
const Issuer = "geotrack"

// Claims is the payload of a command-channel token. The audience is the
// channel name, so tokens minted for other services are rejected.
type Claims struct {
	Role access.Role `json:"role"`
	jwtlib.RegisteredClaims
}

var _ jwtlib.Claims = (*Claims)(nil)

// NewClientClaims constructs claims for a command-channel client.
func NewClientClaims(clientID string, role access.Role, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   clientID,
			Audience:  jwtlib.ClaimStrings{contracts.ChannelName},
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}
