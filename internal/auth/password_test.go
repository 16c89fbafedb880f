package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"stacksight/internal/core"
)

var testHasher = Hasher{Cost: bcrypt.MinCost}

func TestHasher_RoundTrip(t *testing.T) {
	for _, plaintext := range []string{"correct horse", "", " ", "pässwörd 密码 🔑"} {
		hash, err := testHasher.Hash(plaintext)
		require.NoError(t, err, "%q", plaintext)
		assert.True(t, testHasher.Check(plaintext, hash), "%q", plaintext)
		assert.False(t, testHasher.Check(plaintext+"x", hash), "%q", plaintext)
	}

	hash, err := testHasher.Hash("correct horse")
	require.NoError(t, err)
	assert.False(t, testHasher.Check("correct horsE", hash))
	assert.False(t, testHasher.Check("", hash))
	assert.NotContains(t, string(hash), "correct horse")

	empty, err := testHasher.Hash("")
	require.NoError(t, err)
	assert.False(t, testHasher.Check(" ", empty))
}

func TestHasher_FreshSalt(t *testing.T) {
	a, err := testHasher.Hash("same")
	require.NoError(t, err)
	b, err := testHasher.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, testHasher.Check("same", a))
	assert.True(t, testHasher.Check("same", b))
}

func TestHasher_LongPasswordsDiffer(t *testing.T) {
	prefix := strings.Repeat("x", 80)
	hash, err := testHasher.Hash(prefix + "a")
	require.NoError(t, err)

	assert.False(t, testHasher.Check(prefix+"b", hash))
}

func TestHasher_Rejects(t *testing.T) {
	assert.False(t, testHasher.Check("pw", ""))
	assert.False(t, testHasher.Check("pw", "not-a-bcrypt-hash"))

	_, err := NewHasher(bcrypt.MaxCost + 1)
	assert.ErrorIs(t, err, ErrInvalidCost)
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, h.Cost)
}

func TestPackageHelpers(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))
	assert.True(t, CheckPassword("s3cret", hash))
	assert.False(t, CheckPassword("nope", hash))

	empty, err := HashPassword("")
	require.NoError(t, err)
	assert.True(t, CheckPassword("", empty))

	// Hashes made at another cost still verify.
	cheap, err := testHasher.Hash("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword("s3cret", string(cheap)))
}

func TestCheckPassword_RawBcryptHashDoesNotMatch(t *testing.T) {
	raw, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.False(t, CheckPassword("s3cret", string(raw)))
	assert.False(t, testHasher.Check("s3cret", core.PasswordHash(raw)))
}
