package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signingKey = "test-signing-key"

func TestBearerSignsParticipantClaims(t *testing.T) {
	svc := NewService(signingKey, "12345678", "https://registry.example.com")

	bearer, err := svc.Bearer()
	require.NoError(t, err)

	var claims Claims
	parsed, err := jwt.ParseWithClaims(bearer, &claims, func(*jwt.Token) (any, error) {
		return []byte(signingKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, "12345678", claims.Participant)
	assert.Equal(t, "12345678", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"https://registry.example.com"}, claims.Audience)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, 10*time.Second)
}

func TestWithTTLControlsExpiry(t *testing.T) {
	svc := NewService(signingKey, "12345678", "https://registry.example.com",
		WithTTL(30*time.Minute))

	bearer, err := svc.Bearer()
	require.NoError(t, err)

	var claims Claims
	_, err = jwt.ParseWithClaims(bearer, &claims, func(*jwt.Token) (any, error) {
		return []byte(signingKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().Add(30*time.Minute), claims.ExpiresAt.Time, 10*time.Second)
}

func TestBearerCachesUntilNearExpiry(t *testing.T) {
	svc := NewService(signingKey, "12345678", "https://registry.example.com")

	first, err := svc.Bearer()
	require.NoError(t, err)
	second, err := svc.Bearer()
	require.NoError(t, err)
	assert.Equal(t, first, second, "a fresh token is reused")

	// Force the cached token within the reissue margin.
	svc.mu.Lock()
	svc.expires = time.Now().Add(30 * time.Second)
	svc.mu.Unlock()

	third, err := svc.Bearer()
	require.NoError(t, err)
	assert.NotEqual(t, first, third, "near-expiry tokens are reminted")
}
