// Package token generates bearer secrets and one-time codes and hashes them
// for storage. Plaintext values are only ever returned to the caller.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// DefaultByteLength is the entropy used for link and session tokens.
const DefaultByteLength = 32

// CodeCost is the bcrypt cost for verification codes. Tests lower it.
var CodeCost = bcrypt.DefaultCost

// NewToken returns byteLength random bytes, hex-encoded.
func NewToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = DefaultByteLength
	}
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash returns the SHA-256 hex digest of secret.
func Hash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// NewNumericCode returns a 6-digit code (000000–999999).
func NewNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashCode hashes a verification code with bcrypt.
func HashCode(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), CodeCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}
	return string(h), nil
}

// CompareCode reports whether code matches the stored bcrypt hash.
func CompareCode(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
