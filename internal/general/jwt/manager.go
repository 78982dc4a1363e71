package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"geotrack/internal/domain/access"
	"geotrack/internal/general/contracts"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoAuthHeader  = errors.New("authorization header missing")
	ErrBadAuthScheme = errors.New("authorization must be 'Bearer <token>'")
	ErrEmptyToken    = errors.New("bearer token missing")
	ErrRoleForbidden = errors.New("role not allowed")
)

const clockSkew = 5 * time.Second

// Manager issues and verifies HS256 command-channel tokens.
type Manager struct {
	secret    []byte
	accessTTL time.Duration
	parser    *jwtlib.Parser
}

// NewManager creates a token manager. It panics on an empty secret.
func NewManager(secret string, accessTTL time.Duration) *Manager {
	s := strings.TrimSpace(secret)
	if s == "" {
		panic("jwt: empty secret key")
	}

	return &Manager{
		secret:    []byte(s),
		accessTTL: accessTTL,
		parser: jwtlib.NewParser(
			jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
			jwtlib.WithIssuer(Issuer),
			jwtlib.WithAudience(contracts.ChannelName),
			jwtlib.WithExpirationRequired(),
			jwtlib.WithLeeway(clockSkew),
		),
	}
}

// IssueClientToken returns a signed token for a command-channel client.
func (m *Manager) IssueClientToken(clientID string, role access.Role) (string, *Claims, error) {
	if !role.Valid() {
		return "", nil, fmt.Errorf("%w: %s", access.ErrInvalidRole, role)
	}

	claims := NewClientClaims(clientID, role, m.accessTTL)
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies the signature and the registered claims of raw.
func (m *Manager) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := m.parser.ParseWithClaims(raw, claims, func(*jwtlib.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

// Authenticate parses raw and checks that its role is one of allowed.
func (m *Manager) Authenticate(raw string, allowed ...access.Role) (*Claims, error) {
	claims, err := m.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(allowed, claims.Role) {
		return nil, fmt.Errorf("%w: %s", ErrRoleForbidden, claims.Role)
	}
	return claims, nil
}

// FromAuthorization reads "Authorization: Bearer <token>".
func FromAuthorization(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrNoAuthHeader
	}
	return splitBearer(header)
}

// splitBearer extracts the token from "Bearer <token>"; the scheme is case-insensitive.
func splitBearer(value string) (string, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "Bearer") {
		return "", ErrEmptyToken
	}
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrBadAuthScheme
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

type claimsKey struct{}

// InjectClaims adds JWT claims to the context.
func InjectClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// FromContext extracts JWT claims from the context.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}
