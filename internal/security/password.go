// Package security hashes and verifies the administrator password and the
// recovery code.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// ErrUnsupportedHash is returned for stored hashes in an unknown format.
var ErrUnsupportedHash = errors.New("unsupported password hash format")

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// VerifyPassword checks password against a stored hash. Besides bcrypt it
// accepts the scrypt and pbkdf2 formats of older installations
// ("scrypt:N:r:p$salt$hex", "pbkdf2:sha256:iter$salt$hex") and bare
// SHA-256 hex digests.
func VerifyPassword(password, stored string) bool {
	switch {
	case stored == "":
		return false
	case strings.HasPrefix(stored, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	case strings.HasPrefix(stored, "scrypt:"), strings.HasPrefix(stored, "pbkdf2:"):
		ok, err := verifyLegacyKDF(password, stored)
		return err == nil && ok
	default:
		sum := sha256.Sum256([]byte(password))
		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(stored)) == 1
	}
}

// NeedsRehash reports whether a verified hash should be replaced by bcrypt.
func NeedsRehash(stored string) bool {
	return !strings.HasPrefix(stored, "$2")
}

func verifyLegacyKDF(password, stored string) (bool, error) {
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 {
		return false, ErrUnsupportedHash
	}
	method, salt, want := parts[0], parts[1], parts[2]
	wantRaw, err := hex.DecodeString(want)
	if err != nil {
		return false, ErrUnsupportedHash
	}

	params := strings.Split(method, ":")
	var got []byte
	switch params[0] {
	case "scrypt":
		n, r, p := 32768, 8, 1
		if len(params) == 4 {
			if n, err = strconv.Atoi(params[1]); err != nil {
				return false, ErrUnsupportedHash
			}
			if r, err = strconv.Atoi(params[2]); err != nil {
				return false, ErrUnsupportedHash
			}
			if p, err = strconv.Atoi(params[3]); err != nil {
				return false, ErrUnsupportedHash
			}
		}
		got, err = scrypt.Key([]byte(password), []byte(salt), n, r, p, len(wantRaw))
		if err != nil {
			return false, err
		}
	case "pbkdf2":
		if len(params) < 2 {
			return false, ErrUnsupportedHash
		}
		var fn func() hash.Hash
		switch params[1] {
		case "sha256":
			fn = sha256.New
		case "sha512":
			fn = sha512.New
		default:
			return false, ErrUnsupportedHash
		}
		iter := 600000
		if len(params) == 3 {
			if iter, err = strconv.Atoi(params[2]); err != nil {
				return false, ErrUnsupportedHash
			}
		}
		got = pbkdf2.Key([]byte(password), []byte(salt), iter, len(wantRaw), fn)
	default:
		return false, ErrUnsupportedHash
	}
	return subtle.ConstantTimeCompare(got, wantRaw) == 1, nil
}

const recoveryAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRecoveryCode returns a code of the form XXXX-XXXX-XXXX-XXXX.
func GenerateRecoveryCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate recovery code: %w", err)
	}
	var sb strings.Builder
	for i, b := range buf {
		if i > 0 && i%4 == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(recoveryAlphabet[int(b)%len(recoveryAlphabet)])
	}
	return sb.String(), nil
}

// RecoveryFile renders the text file handed to the administrator.
func RecoveryFile(code string) string {
	var sb strings.Builder
	sb.WriteString("CODE DE RÉCUPÉRATION ADMINISTRATEUR\n")
	sb.WriteString("===================================\n\n")
	sb.WriteString("Code : " + code + "\n\n")
	sb.WriteString("Conservez ce fichier en lieu sûr !\n")
	sb.WriteString("Il permet de réinitialiser le mot de passe administrateur en cas d'oubli.\n")
	return sb.String()
}
