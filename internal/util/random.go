package util

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// StateTokenBytes is the entropy drawn for protocol state tokens.
const StateTokenBytes = 32

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}

// RandomToken returns an unpadded base64url token carrying n bytes of entropy.
func RandomToken(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RandomStateToken returns a token suitable for fork/cookie state values.
func RandomStateToken() (string, error) {
	return RandomToken(StateTokenBytes)
}
