package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-for-jwt-signing-0123456789")

func newTestTokens(t *testing.T, now *time.Time) *TokenService {
	t.Helper()
	s, err := NewTokenService(testSecret, "HS256", 24*time.Hour)
	require.NoError(t, err)
	if now != nil {
		s.now = func() time.Time { return *now }
	}
	return s
}

func TestNewTokenService_RejectsBadConfig(t *testing.T) {
	_, err := NewTokenService(nil, "HS256", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService(testSecret, "RS256", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService(testSecret, "none", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService(testSecret, "HS256", 0)
	assert.Error(t, err)
}

func TestTokenService_IssueThenValidate(t *testing.T) {
	s := newTestTokens(t, nil)

	token, expiresAt, err := s.Issue("admin")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	v := s.Validate(token)
	assert.Equal(t, TokenValid, v.Status)
	assert.Equal(t, "admin", v.Subject)
}

func TestTokenService_ExpiryFollowsClock(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestTokens(t, &now)

	token, _, err := s.Issue("admin")
	require.NoError(t, err)

	now = now.Add(23*time.Hour + 59*time.Minute)
	v := s.Validate(token)
	assert.Equal(t, TokenValid, v.Status)
	assert.Equal(t, "admin", v.Subject)

	now = now.Add(2 * time.Minute)
	v = s.Validate(token)
	assert.Equal(t, TokenInvalid, v.Status)
	assert.Empty(t, v.Subject)
	assert.ErrorIs(t, v.Err, jwt.ErrTokenExpired)

	// Same answer every time for the same clock.
	assert.Equal(t, TokenInvalid, s.Validate(token).Status)
}

func TestTokenService_Invalid(t *testing.T) {
	s := newTestTokens(t, nil)
	good, _, err := s.Issue("admin")
	require.NoError(t, err)

	other, err := NewTokenService([]byte("a-completely-different-secret-value"), "HS256", time.Hour)
	require.NoError(t, err)
	foreign, _, err := other.Issue("admin")
	require.NoError(t, err)

	hs512, err := NewTokenService(testSecret, "HS512", time.Hour)
	require.NoError(t, err)
	wrongAlg, _, err := hs512.Issue("admin")
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "admin",
	}).SignedString(testSecret)
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	testCases := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt-token"},
		{name: "malformed", token: "header.payload.signature"},
		{name: "wrong secret", token: foreign},
		{name: "wrong algorithm", token: wrongAlg},
		{name: "tampered payload", token: tampered},
		{name: "missing subject", token: noSubject},
		{name: "missing expiry", token: noExpiry},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := s.Validate(tc.token)
			assert.Equal(t, TokenInvalid, v.Status)
			assert.Empty(t, v.Subject)
		})
	}
}

func TestTokenService_Absent(t *testing.T) {
	s := newTestTokens(t, nil)
	assert.Equal(t, TokenAbsent, s.Validate("").Status)
}

func TestTokenStatus_String(t *testing.T) {
	assert.Equal(t, "absent", TokenAbsent.String())
	assert.Equal(t, "invalid", TokenInvalid.String())
	assert.Equal(t, "valid", TokenValid.String())
}
