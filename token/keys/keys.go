package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MinSecretLength is the shortest HMAC secret accepted, in bytes.
const MinSecretLength = 32

// GenerateSecret returns a random HMAC secret of n bytes.
func GenerateSecret(n int) ([]byte, error) {
	if n < MinSecretLength {
		n = MinSecretLength
	}
	secret := make([]byte, n)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	return secret, nil
}

// KeyID derives a stable, non-secret identifier for a secret so tokens signed
// with a rotated secret can be told apart.
func KeyID(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:8])
}
