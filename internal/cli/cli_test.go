package cli

import (
	"bytes"
	"testing"
	"time"

	"geotrack/internal/domain/access"
	"geotrack/internal/general/contracts"
	"geotrack/internal/general/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		args     []string
		mode     string
		leftover []string
	}{
		{[]string{"--mode=tracker-service", "--config=x.yaml"}, ModeTracker, []string{"--config=x.yaml"}},
		{[]string{"ctl", "--method=startService"}, ModeControl, []string{"--method=startService"}},
		{[]string{"--mode=tok"}, ModeToken, nil},
		{[]string{"--method=stopService", "c"}, ModeControl, []string{"--method=stopService"}},
	}
	for _, tc := range cases {
		mode, rest, err := ParseMode(tc.args)
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.mode, mode)
		assert.Equal(t, tc.leftover, rest)
	}

	_, _, err := ParseMode([]string{"--config=x.yaml"})
	assert.ErrorIs(t, err, ErrNoMode)

	_, _, err = ParseMode([]string{"--mode=dispatcher"})
	assert.Error(t, err)
}

func TestMintBridgeToken(t *testing.T) {
	token, claims, err := MintBridgeToken("secret", "observer-1", "observer", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, access.RoleObserver, claims.Role)
	assert.Equal(t, "observer-1", claims.Subject)

	parsed, err := jwt.NewManager("secret", time.Hour).Authenticate(token, access.RoleObserver)
	require.NoError(t, err)
	assert.Equal(t, "observer-1", parsed.Subject)
}

func TestMintBridgeTokenDefaults(t *testing.T) {
	_, claims, err := MintBridgeToken("secret", "", "", 0)
	require.NoError(t, err)
	assert.Equal(t, contracts.ProducerControlClient, claims.Subject)
	assert.Equal(t, access.RoleController, claims.Role)
	assert.WithinDuration(t, claims.IssuedAt.Add(DefaultTokenTTL), claims.ExpiresAt.Time, time.Second)
}

func TestMintBridgeTokenRejects(t *testing.T) {
	_, _, err := MintBridgeToken("secret", "x", "ADMIN", time.Hour)
	assert.ErrorIs(t, err, access.ErrInvalidRole)

	_, _, err = MintBridgeToken("", "x", "controller", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestPrintUsageListsModes(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf)
	assert.Contains(t, buf.String(), "tracker-service")
	assert.Contains(t, buf.String(), "control")
	assert.Contains(t, buf.String(), "aliases: ctl, c")
}
