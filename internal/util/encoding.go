package util

import (
	"encoding/base64"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKD normalization, used on passphrases before KDF input.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}

func B64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func B64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// B64URLEncode encodes to unpadded base64url, the URL-fragment-safe form.
func B64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func B64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
