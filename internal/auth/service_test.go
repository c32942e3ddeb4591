package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_IssueAndVerify(t *testing.T) {
	s := NewService([]byte("secret"), time.Hour)

	identity, err := s.NewIdentity()
	require.NoError(t, err)
	require.NotEmpty(t, identity.UserID)
	require.NotEmpty(t, identity.Token)

	userID, err := s.UserIDFromToken(identity.Token)
	require.NoError(t, err)
	assert.Equal(t, identity.UserID, userID)
}

func TestService_RejectsExpiredToken(t *testing.T) {
	s := NewService([]byte("secret"), time.Hour)
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }

	identity, err := s.Issue("u1")
	require.NoError(t, err)
	assert.Equal(t, issued.Add(time.Hour), identity.ExpiresAt)

	s.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = s.UserIDFromToken(identity.Token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestService_RejectsForeignTokens(t *testing.T) {
	s := NewService([]byte("secret"), time.Hour)
	other := NewService([]byte("other"), time.Hour)

	identity, err := other.Issue("u1")
	require.NoError(t, err)
	_, err = s.UserIDFromToken(identity.Token)
	require.Error(t, err)

	_, err = s.UserIDFromToken("not-a-token")
	require.Error(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.UserIDFromToken(noSubject)
	require.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.UserIDFromToken(none)
	require.Error(t, err)
}
