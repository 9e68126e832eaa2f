package auth

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTOTPManager(t *testing.T) *TOTPManager {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	tm, err := NewTOTPManager(key, "Gatehouse")
	require.NoError(t, err)
	return tm
}

// ============================================================================
// Constructor Tests
// ============================================================================

func TestTOTPManager_NewTOTPManager_ValidKey(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	tm, err := NewTOTPManager(key, "Gatehouse")
	assert.NoError(t, err)
	assert.NotNil(t, tm)
}

func TestTOTPManager_NewTOTPManager_InvalidKeyLength(t *testing.T) {
	tests := []int{0, 16, 24, 31, 33, 64}
	for _, length := range tests {
		key := make([]byte, length)
		tm, err := NewTOTPManager(key, "Gatehouse")
		assert.Error(t, err)
		assert.Nil(t, tm)
		assert.Contains(t, err.Error(), "must be exactly 32 bytes")
	}
}

// ============================================================================
// Secret Generation Tests
// ============================================================================

func TestTOTPManager_GenerateSecretWithQR_Success(t *testing.T) {
	tm := newTestTOTPManager(t)

	encrypted, nonce, plainSecret, qrCode, err := tm.GenerateSecretWithQR("user@example.com")

	assert.NoError(t, err)
	assert.NotNil(t, encrypted)
	assert.NotNil(t, nonce)
	assert.NotEmpty(t, plainSecret)
	assert.NotEmpty(t, qrCode)
	assert.Equal(t, 12, len(nonce)) // GCM nonce is 12 bytes
}

func TestTOTPManager_GenerateSecretWithQR_QRCodeFormat(t *testing.T) {
	tm := newTestTOTPManager(t)

	_, _, _, qrCode, err := tm.GenerateSecretWithQR("user@example.com")
	require.NoError(t, err)

	// QR code should be a data URL
	assert.Contains(t, qrCode, "data:image/png;base64,")

	// Extract and decode base64 part
	dataURL := qrCode[len("data:image/png;base64,"):]
	pngData, err := base64.StdEncoding.DecodeString(dataURL)
	assert.NoError(t, err)
	assert.Greater(t, len(pngData), 0)

	// PNG signature: 137 80 78 71
	assert.Equal(t, byte(137), pngData[0])
	assert.Equal(t, byte(80), pngData[1])
	assert.Equal(t, byte(78), pngData[2])
	assert.Equal(t, byte(71), pngData[3])
}

func TestTOTPManager_GenerateSecretWithQR_EncryptedRoundTrip(t *testing.T) {
	tm := newTestTOTPManager(t)

	encrypted, nonce, plainSecret, _, err := tm.GenerateSecretWithQR("user@example.com")
	require.NoError(t, err)

	// Decrypting the stored form must recover the provisioned secret
	decrypted, err := tm.DecryptSecret(encrypted, nonce)
	require.NoError(t, err)
	assert.Equal(t, plainSecret, string(decrypted))
}

// ============================================================================
// Encryption/Decryption Tests - SECURITY CRITICAL
// ============================================================================

func TestTOTPManager_EncryptDecrypt_RoundTrip(t *testing.T) {
	tm := newTestTOTPManager(t)

	originalSecret := []byte("test_secret_value_for_encryption")

	encrypted, nonce, err := tm.EncryptSecret(originalSecret)
	require.NoError(t, err)

	decrypted, err := tm.DecryptSecret(encrypted, nonce)
	require.NoError(t, err)

	assert.Equal(t, originalSecret, decrypted)
}

func TestTOTPManager_DecryptSecret_TamperedCiphertext(t *testing.T) {
	tm := newTestTOTPManager(t)

	encrypted, nonce, err := tm.EncryptSecret([]byte("test_secret_value"))
	require.NoError(t, err)

	// Tamper with ciphertext
	if len(encrypted) > 0 {
		encrypted[0] ^= 0xFF
	}

	// Decrypt should fail due to GCM authentication
	decrypted, err := tm.DecryptSecret(encrypted, nonce)
	assert.Error(t, err)
	assert.Nil(t, decrypted)
	assert.Contains(t, err.Error(), "failed to decrypt")
}

func TestTOTPManager_DecryptSecret_WrongNonce(t *testing.T) {
	tm := newTestTOTPManager(t)

	encrypted, _, err := tm.EncryptSecret([]byte("test_secret_value"))
	require.NoError(t, err)

	wrongNonce := make([]byte, 12)
	_, err = rand.Read(wrongNonce)
	require.NoError(t, err)

	decrypted, err := tm.DecryptSecret(encrypted, wrongNonce)
	assert.Error(t, err)
	assert.Nil(t, decrypted)
}

func TestTOTPManager_DecryptSecret_WrongKey(t *testing.T) {
	tm := newTestTOTPManager(t)
	other := newTestTOTPManager(t)

	encrypted, nonce, err := tm.EncryptSecret([]byte("test_secret_value"))
	require.NoError(t, err)

	// A manager with a different key must not decrypt the blob
	decrypted, err := other.DecryptSecret(encrypted, nonce)
	assert.Error(t, err)
	assert.Nil(t, decrypted)
}

// ============================================================================
// Code Validation Tests - SECURITY CRITICAL
// ============================================================================

func TestTOTPManager_ValidateCode_ValidCode(t *testing.T) {
	tm := newTestTOTPManager(t)

	_, _, secretBase32, _, err := tm.GenerateSecretWithQR("user@example.com")
	require.NoError(t, err)

	validCode, err := totp.GenerateCode(secretBase32, time.Now())
	require.NoError(t, err)

	valid, err := tm.ValidateCode([]byte(secretBase32), validCode)
	assert.NoError(t, err)
	assert.True(t, valid)
}

func TestTOTPManager_ValidateCode_PlusOneTimeStep(t *testing.T) {
	tm := newTestTOTPManager(t)

	_, _, secretBase32, _, err := tm.GenerateSecretWithQR("user@example.com")
	require.NoError(t, err)

	// Code from the next time step should pass the ±1 skew window
	futureCode, err := totp.GenerateCode(secretBase32, time.Now().Add(30*time.Second))
	require.NoError(t, err)

	valid, err := tm.ValidateCode([]byte(secretBase32), futureCode)
	assert.NoError(t, err)
	assert.True(t, valid)
}

func TestTOTPManager_ValidateCode_MinusOneTimeStep(t *testing.T) {
	tm := newTestTOTPManager(t)

	_, _, secretBase32, _, err := tm.GenerateSecretWithQR("user@example.com")
	require.NoError(t, err)

	pastCode, err := totp.GenerateCode(secretBase32, time.Now().Add(-30*time.Second))
	require.NoError(t, err)

	valid, err := tm.ValidateCode([]byte(secretBase32), pastCode)
	assert.NoError(t, err)
	assert.True(t, valid)
}

func TestTOTPManager_ValidateCode_InvalidCode(t *testing.T) {
	tm := newTestTOTPManager(t)

	_, _, secretBase32, _, err := tm.GenerateSecretWithQR("user@example.com")
	require.NoError(t, err)

	valid, err := tm.ValidateCode([]byte(secretBase32), "000000")
	assert.NoError(t, err)
	assert.False(t, valid)
}

func TestTOTPManager_ValidateCode_ExpiredCode(t *testing.T) {
	tm := newTestTOTPManager(t)

	_, _, secretBase32, _, err := tm.GenerateSecretWithQR("user@example.com")
	require.NoError(t, err)

	// 3 minutes ago is outside the 90-second acceptance window
	expiredCode, err := totp.GenerateCode(secretBase32, time.Now().Add(-3*time.Minute))
	require.NoError(t, err)

	valid, err := tm.ValidateCode([]byte(secretBase32), expiredCode)
	assert.NoError(t, err)
	assert.False(t, valid)
}
