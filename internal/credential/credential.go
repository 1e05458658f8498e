// Package credential implements one-way secret hashing and one-time recovery
// codes. Stored credentials use the text format "saltHex$hashHex".
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"telegram-bot-core/internal/domain"
)

const (
	// MinIterations is the PBKDF2 floor. Lower values are rejected, never raised.
	MinIterations = 10000
	// DefaultIterations is the count used for every stored user credential.
	DefaultIterations = 100000

	saltBytes = 16
	keyBytes  = 32
	delimiter = "$"

	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$&*"
)

// Derive runs PBKDF2-SHA256 over secret with the given salt.
func Derive(secret string, salt []byte, iterations int) ([]byte, error) {
	if iterations < MinIterations {
		return nil, domain.NewError(domain.KindConfiguration, "credential: Derive", "iterations_below_floor",
			fmt.Errorf("iterations %d, minimum %d", iterations, MinIterations))
	}
	return pbkdf2.Key([]byte(secret), salt, iterations, keyBytes, sha256.New), nil
}

// HashSecret derives secret with a fresh 128-bit salt and returns "saltHex$hashHex".
func HashSecret(secret string, iterations int) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("credential: HashSecret: read salt: %w", err)
	}
	key, err := Derive(secret, salt, iterations)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(salt) + delimiter + hex.EncodeToString(key), nil
}

// VerifySecret reports whether secret matches stored. A malformed stored value
// is a mismatch, not an error.
func VerifySecret(secret, stored string, iterations int) bool {
	parts := strings.Split(stored, delimiter)
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	got, err := Derive(secret, salt, iterations)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

// GenerateOneTimeCode shuffles the whole alphabet and takes the first six
// characters, so a code never repeats a character.
func GenerateOneTimeCode() (string, error) {
	chars := []byte(codeAlphabet)
	for i := len(chars) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("credential: GenerateOneTimeCode: %w", err)
		}
		j := int(n.Int64())
		chars[i], chars[j] = chars[j], chars[i]
	}
	return string(chars[:codeLength]), nil
}
