// Package blob encrypts and decrypts the small JSON payloads that carry
// session secrets, as versioned base64 ciphertexts. Version 1 is the legacy
// format with no associated data; version 2 binds a payload context so a
// blob sealed for one purpose (fork transfer) cannot be replayed as another
// (session persistence).
package blob

import (
	"fmt"

	"github.com/jmcleod/keyrelay/internal/aad"
	"github.com/jmcleod/keyrelay/internal/util"
)

// Supported payload blob versions.
const (
	Version1 = 1
	Version2 = 2
)

// Payload contexts, re-exported for callers of Encrypt/Decrypt.
const (
	ContextFork    = aad.ContextFork
	ContextSession = aad.ContextSession
)

// Encrypt seals payload under key with the given version and context and
// returns the base64 ciphertext. The context is ignored for Version1.
func Encrypt(key []byte, payload Payload, version int, context string) (string, error) {
	associated, err := associatedData(version, context)
	if err != nil {
		return "", err
	}
	plaintext, err := marshalPayload(payload)
	if err != nil {
		return "", err
	}
	defer util.WipeBytes(plaintext)

	ciphertext, err := util.SealAESGCM(plaintext, key, associated)
	if err != nil {
		return "", fmt.Errorf("sealing payload blob: %w", err)
	}
	return util.B64Encode(ciphertext), nil
}

// Decrypt opens a base64 blob produced by Encrypt. Malformed base64, a wrong
// key, a context mismatch, and tag verification failure are all reported as
// an opaque decryption error; no partial plaintext is ever returned.
func Decrypt(key []byte, encrypted string, version int, context string) (Payload, error) {
	associated, err := associatedData(version, context)
	if err != nil {
		return nil, err
	}
	ciphertext, err := util.B64Decode(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decoding payload blob: %w", err)
	}
	plaintext, err := util.OpenAESGCM(ciphertext, key, associated)
	if err != nil {
		return nil, fmt.Errorf("opening payload blob: %w", err)
	}
	defer util.WipeBytes(plaintext)

	return unmarshalPayload(plaintext)
}

// associatedData resolves the AEAD associated data for a blob version.
// Unknown versions fail closed rather than being treated as legacy.
func associatedData(version int, context string) ([]byte, error) {
	switch version {
	case Version1:
		return nil, nil
	case Version2:
		return aad.ForPayload(context, version)
	default:
		return nil, fmt.Errorf("unsupported payload version %d", version)
	}
}
