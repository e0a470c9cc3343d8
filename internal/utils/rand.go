package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenHex generates a random hex string of nbytes entropy.
func TokenHex(nbytes int) string {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		panic("utils: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
