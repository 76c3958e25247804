package tasks

import (
	"crypto/rand"
	"fmt"
)

const keyAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const keyLength = 16

// NewKey mints an opaque verification token: 16 base-36 characters (~82
// bits), so neither the shortlink network nor the user can guess a valid
// key for someone else's attempt. Comparison is case-sensitive exact match.
func NewKey() (string, error) {
	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate verification key: %w", err)
	}
	for i, b := range buf {
		buf[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}
	return string(buf), nil
}
