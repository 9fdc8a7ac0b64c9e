package session

import (
	"fmt"

	"github.com/jmcleod/keyrelay/internal/util"
)

const offlineKeySaltLen = 16

// OfflineKey is the secret derived from a user-chosen offline passphrase,
// enabling access to cached data without a live network session. Password is
// the base64 derived key; Salt is stored in the clear next to the session
// record.
type OfflineKey struct {
	Password string
	Salt     string
}

// Argon2idParams re-exports the KDF parameter set for offline keys.
type Argon2idParams = util.Argon2idParams

// DefaultOfflineKDFParams returns the recommended Argon2id parameters for
// offline key derivation.
func DefaultOfflineKDFParams() Argon2idParams {
	return util.DefaultArgon2idParams()
}

// GenerateOfflineKey derives a fresh offline key from the passphrase with a
// newly generated salt. The passphrase is NFKD-normalized first so visually
// identical inputs derive the same key.
func GenerateOfflineKey(passphrase string, params Argon2idParams) (OfflineKey, error) {
	salt, err := util.RandomBytes(offlineKeySaltLen)
	if err != nil {
		return OfflineKey{}, err
	}
	return deriveOfflineKey(passphrase, salt, params)
}

// RederiveOfflineKey recomputes the offline key from a passphrase and the
// stored clear-text salt.
func RederiveOfflineKey(passphrase, saltB64 string, params Argon2idParams) (OfflineKey, error) {
	salt, err := util.B64Decode(saltB64)
	if err != nil {
		return OfflineKey{}, fmt.Errorf("decoding offline key salt: %w", err)
	}
	return deriveOfflineKey(passphrase, salt, params)
}

func deriveOfflineKey(passphrase string, salt []byte, params Argon2idParams) (OfflineKey, error) {
	key, err := util.DeriveArgon2idKey(util.Normalize(passphrase), salt, params)
	if err != nil {
		return OfflineKey{}, fmt.Errorf("deriving offline key: %w", err)
	}
	defer util.WipeBytes(key)
	return OfflineKey{
		Password: util.B64Encode(key),
		Salt:     util.B64Encode(salt),
	}, nil
}
