package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const opaqueTokenBytes = 32

// GenerateToken returns 32 random bytes hex-encoded (64 chars). Used for the
// email-verification, password-reset and PIN-reset tokens, which are stored
// as-is, and for refresh tokens, which are stored by their SHA-256 digest.
func GenerateToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: token generation: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 hex digest of a token's wire form. The digest
// is the server-side identity of a refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateRandomPIN samples a PIN uniformly from [100000, 999999].
func GenerateRandomPIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("cryptox: pin generation: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
