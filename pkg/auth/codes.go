package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const MagicLinkTokenLength = 32 // bytes of entropy, hex-encoded to 64 chars

// GenerateOTP returns a 6-digit numeric code in [100000, 999999].
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// GenerateMagicLinkToken returns a hex-encoded random token for single-use
// login links.
func GenerateMagicLinkToken() (string, error) {
	bytes := make([]byte, MagicLinkTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate magic link token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
