package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("kiosk-1", RoleKiosk, "libtrack", "secret", time.Minute, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := Parse(pair.AccessToken, "secret", "libtrack")
	require.NoError(t, err)
	assert.Equal(t, "kiosk-1", claims.Subject)
	assert.Equal(t, RoleKiosk, claims.Role)
}

func TestParseRejects(t *testing.T) {
	pair, err := Issue("kiosk-1", RoleKiosk, "libtrack", "secret", time.Minute, time.Hour)
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		_, err := Parse(pair.AccessToken, "other", "libtrack")
		assert.Error(t, err)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		_, err := Parse(pair.AccessToken, "secret", "someone-else")
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := Issue("kiosk-1", RoleKiosk, "libtrack", "secret", -time.Minute, -time.Minute)
		require.NoError(t, err)
		_, err = Parse(expired.AccessToken, "secret", "libtrack")
		assert.Error(t, err)
	})
}
