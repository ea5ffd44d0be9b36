// ABOUTME: Secret hashing and verification for person credentials.
// ABOUTME: Wraps bcrypt so the stored form never leaves this file.

package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcryptPrefix marks a secret that has already been hashed. Plaintext
// secrets never start with this, so the check is unambiguous.
const bcryptPrefix = "$2"

// HashSecret hashes a plaintext secret for storage.
func HashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// IsHashed reports whether a stored secret is already in hashed form.
// Updates that echo the stored hash back must not be re-hashed.
func IsHashed(secret string) bool {
	return strings.HasPrefix(secret, bcryptPrefix)
}

// VerifySecret checks a presented plaintext secret against the stored hash.
func VerifySecret(stored, presented string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil
}
