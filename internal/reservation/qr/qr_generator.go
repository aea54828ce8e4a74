package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-canteen/internal/models"
)

// QRGenerator renders a reservation's pickup credentials as an encrypted QR
// code for scanning at the counter.
type QRGenerator struct {
	secret []byte
}

type pickupPayload struct {
	ReservationID string    `json:"reservation_id"`
	Token         string    `json:"token"`
	MealID        int64     `json:"meal_id"`
	Quantity      int       `json:"quantity"`
	PickupTime    time.Time `json:"pickup_time"`
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

func (q *QRGenerator) GeneratePickupQR(res models.Reservation) ([]byte, error) {
	payload := pickupPayload{
		ReservationID: res.ID,
		Token:         res.Token,
		MealID:        res.MealID,
		Quantity:      res.Quantity,
		PickupTime:    res.PickupTime,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, q.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
