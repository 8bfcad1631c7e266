// Package auth provides the authentication primitives of the gallery API: API key generation
// and verification, JWT signing and validation, and permission scopes.
// Bearer tokens are either JWTs (issued to signed-in users and admins) or API keys (credentials
// of type apikey.v4, stored as bcrypt hashes). internal/middleware/auth.go decides which is which.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultAPIKeyPrefix starts every generated key unless configured otherwise
	DefaultAPIKeyPrefix = "gal"

	// APIKeyLength is the length of the random part of the API key in bytes
	APIKeyLength = 32

	// DisplayPrefixLength is the number of leading characters stored in clear for lookup
	DisplayPrefixLength = 10

	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12
)

// ErrInvalidAPIKey is returned when a presented API key matches no usable credential
var ErrInvalidAPIKey = errors.New("invalid API key")

// GenerateAPIKey creates a new random API key with the given prefix
// Returns: full key (to show once), bcrypt hash (to store), display prefix
func GenerateAPIKey(prefix string) (key string, hash string, displayPrefix string, err error) {
	randomBytes := make([]byte, APIKeyLength)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	fullKey := prefix + "_" + base64.RawURLEncoding.EncodeToString(randomBytes)

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullKey), BcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to hash API key: %w", err)
	}

	displayPrefix = fullKey
	if len(fullKey) > DisplayPrefixLength {
		displayPrefix = fullKey[:DisplayPrefixLength]
	}

	return fullKey, string(hashBytes), displayPrefix, nil
}

// ValidateAPIKey checks if a provided key matches the stored hash
func ValidateAPIKey(providedKey, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(providedKey)) == nil
}

// LooksLikeAPIKey reports whether a bearer token carries the API key prefix.
// Anything else is treated as a JWT.
func LooksLikeAPIKey(token, prefix string) bool {
	return strings.HasPrefix(token, prefix+"_")
}

// ExtractBearerToken extracts the token from an Authorization header
// Expected format: "Bearer gal_abc123xyz..." or "Bearer <jwt>"
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", errors.New("token is empty after Bearer prefix")
	}
	return token, nil
}
