package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// PickupTokenLength is the number of hex characters in a pickup token.
// Short enough to type at the counter, wide enough (16^8) that collisions
// are rare; the store's uniqueness constraint is the backstop.
const PickupTokenLength = 8

// GeneratePickupToken returns an uppercase hex token from a cryptographically
// strong source, e.g. "A3F09B1C".
func GeneratePickupToken() string {
	buf := make([]byte, PickupTokenLength/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; panic beats
		// handing out a guessable token.
		panic("utils: crypto/rand unavailable: " + err.Error())
	}
	return strings.ToUpper(hex.EncodeToString(buf))
}
