package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSessionManager_IssueVerify(t *testing.T) {
	m, err := NewSessionManager(testSecret, time.Hour)
	require.NoError(t, err)

	token, issued, err := m.Issue("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", issued.Username)

	s, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Username)
	assert.True(t, s.ExpiresAt.Equal(issued.ExpiresAt))
}

func TestSessionManager_Expired(t *testing.T) {
	m, err := NewSessionManager(testSecret, time.Minute)
	require.NoError(t, err)

	start := time.Now()
	m.now = func() time.Time { return start }
	token, _, err := m.Issue("alice")
	require.NoError(t, err)

	m.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionManager_RejectsForeignTokens(t *testing.T) {
	m, err := NewSessionManager(testSecret, time.Hour)
	require.NoError(t, err)

	other, err := NewSessionManager(strings.Repeat("z", 32), time.Hour)
	require.NoError(t, err)
	token, _, err := other.Issue("mallory")
	require.NoError(t, err)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "mallory",
		Issuer:    DefaultIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = m.Verify(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewSessionManager_Validation(t *testing.T) {
	_, err := NewSessionManager("short", time.Hour)
	assert.ErrorIs(t, err, ErrWeakSecret)

	_, err = NewSessionManager(testSecret, 0)
	assert.Error(t, err)

	m, err := NewSessionManager(testSecret, time.Hour)
	require.NoError(t, err)
	_, _, err = m.Issue("")
	assert.Error(t, err)
}
