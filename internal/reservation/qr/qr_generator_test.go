package qr

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-canteen/internal/models"
)

func sampleReservation() models.Reservation {
	return models.Reservation{
		ID:         "res-123",
		UserID:     42,
		MealID:     7,
		PickupTime: time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC),
		Quantity:   2,
		Status:     models.StatusConfirmed,
		Token:      "A1B2C3D4",
	}
}

func TestGeneratePickupQRProducesPNG(t *testing.T) {
	gen := NewQRGenerator("test-secret")

	png, err := gen.GeneratePickupQR(sampleReservation())
	require.NoError(t, err)
	require.NotEmpty(t, png)

	pngHeader := []byte{0x89, 'P', 'N', 'G'}
	assert.True(t, bytes.HasPrefix(png, pngHeader), "output should be a PNG image")
}

func TestGeneratePickupQRAnySecretLength(t *testing.T) {
	// The secret is hashed to a fixed AES key size, so arbitrary strings work.
	for _, secret := range []string{"", "short", "a-much-longer-secret-than-32-bytes-without-a-doubt"} {
		gen := NewQRGenerator(secret)
		png, err := gen.GeneratePickupQR(sampleReservation())
		require.NoError(t, err)
		assert.NotEmpty(t, png)
	}
}

func TestEncryptAESRandomizesCiphertext(t *testing.T) {
	gen := NewQRGenerator("test-secret")

	first, err := encryptAES([]byte("payload"), gen.secret)
	require.NoError(t, err)
	second, err := encryptAES([]byte("payload"), gen.secret)
	require.NoError(t, err)

	// Random IV per encryption; identical plaintext must not repeat.
	assert.NotEqual(t, first, second)
}
