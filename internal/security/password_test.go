package security

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

func TestHashAndVerify(t *testing.T) {
	h, err := HashPassword("1234")
	require.NoError(t, err)

	assert.True(t, VerifyPassword("1234", h))
	assert.False(t, VerifyPassword("12345", h))
	assert.False(t, NeedsRehash(h))
	assert.False(t, VerifyPassword("1234", ""))
}

func TestVerifyLegacyFormats(t *testing.T) {
	t.Run("SHA256", func(t *testing.T) {
		sum := sha256.Sum256([]byte("secret"))
		stored := hex.EncodeToString(sum[:])
		assert.True(t, VerifyPassword("secret", stored))
		assert.False(t, VerifyPassword("other", stored))
		assert.True(t, NeedsRehash(stored))
	})

	t.Run("PBKDF2", func(t *testing.T) {
		key := pbkdf2.Key([]byte("secret"), []byte("saltsalt"), 1000, 32, sha256.New)
		stored := "pbkdf2:sha256:1000$saltsalt$" + hex.EncodeToString(key)
		assert.True(t, VerifyPassword("secret", stored))
		assert.False(t, VerifyPassword("other", stored))
	})

	t.Run("Scrypt", func(t *testing.T) {
		key, err := scrypt.Key([]byte("secret"), []byte("pepper"), 16, 8, 1, 64)
		require.NoError(t, err)
		stored := "scrypt:16:8:1$pepper$" + hex.EncodeToString(key)
		assert.True(t, VerifyPassword("secret", stored))
		assert.False(t, VerifyPassword("other", stored))
	})

	t.Run("Malformed", func(t *testing.T) {
		assert.False(t, VerifyPassword("secret", "pbkdf2:md5:10$salt$00"))
		assert.False(t, VerifyPassword("secret", "scrypt:bad"))
		assert.False(t, VerifyPassword("secret", "pbkdf2:sha256:10$salt$zz"))
	})
}

func TestGenerateRecoveryCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{4}(-[A-Z0-9]{4}){3}$`)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := GenerateRecoveryCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
	assert.Contains(t, RecoveryFile("ABCD-EFGH-IJKL-MNOP"), "ABCD-EFGH-IJKL-MNOP")
}
