package cli

import (
	"errors"
	"fmt"
	"time"

	"geotrack/internal/domain/access"
	"geotrack/internal/general/contracts"
	"geotrack/internal/general/jwt"
)

// DefaultTokenTTL is the lifetime of tokens minted for local bridge clients.
const DefaultTokenTTL = 2 * time.Hour

var ErrNoSecret = errors.New("jwt secret is empty")

// MintBridgeToken signs a token accepted by the tracker's /v1/channel and
// /ws/channel endpoints. Empty clientID and role default to the control client
// acting as CONTROLLER; a non-positive ttl means DefaultTokenTTL.
func MintBridgeToken(secret, clientID, role string, ttl time.Duration) (string, *jwt.Claims, error) {
	if secret == "" {
		return "", nil, ErrNoSecret
	}
	if clientID == "" {
		clientID = contracts.ProducerControlClient
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	r := access.RoleController
	if role != "" {
		parsed, err := access.ParseRole(role)
		if err != nil {
			return "", nil, fmt.Errorf("role %q: %w", role, err)
		}
		r = parsed
	}

	return jwt.NewManager(secret, ttl).IssueClientToken(clientID, r)
}
