package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestSealOpenAESGCM(t *testing.T) {
	key, err := NewAESKey()
	if err != nil {
		t.Fatalf("NewAESKey: %v", err)
	}
	plaintext := []byte(`{"keyPassword":"secret"}`)

	t.Run("RoundTripNoAAD", func(t *testing.T) {
		ct, err := SealAESGCM(plaintext, key, nil)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		pt, err := OpenAESGCM(ct, key, nil)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if !bytes.Equal(pt, plaintext) {
			t.Fatalf("got %q, want %q", pt, plaintext)
		}
	})

	t.Run("RoundTripWithAAD", func(t *testing.T) {
		aad := []byte("context")
		ct, err := SealAESGCM(plaintext, key, aad)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		if _, err := OpenAESGCM(ct, key, aad); err != nil {
			t.Fatalf("open with matching aad: %v", err)
		}
		if _, err := OpenAESGCM(ct, key, []byte("other")); err == nil {
			t.Fatal("expected failure with mismatched aad")
		}
		if _, err := OpenAESGCM(ct, key, nil); err == nil {
			t.Fatal("expected failure with missing aad")
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		ct, err := SealAESGCM(plaintext, key, nil)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		other, _ := NewAESKey()
		if _, err := OpenAESGCM(ct, other, nil); err == nil {
			t.Fatal("expected failure with wrong key")
		}
	})

	t.Run("ShortCiphertext", func(t *testing.T) {
		if _, err := OpenAESGCM([]byte{1, 2, 3}, key, nil); err == nil {
			t.Fatal("expected failure for truncated ciphertext")
		}
	})

	t.Run("BadKeySize", func(t *testing.T) {
		if _, err := SealAESGCM(plaintext, []byte("short"), nil); err == nil {
			t.Fatal("expected failure for short key")
		}
	})
}

func TestRandomToken(t *testing.T) {
	tok1, err := RandomStateToken()
	if err != nil {
		t.Fatalf("RandomStateToken: %v", err)
	}
	tok2, err := RandomStateToken()
	if err != nil {
		t.Fatalf("RandomStateToken: %v", err)
	}
	if tok1 == tok2 {
		t.Fatal("tokens should be unique")
	}
	if strings.ContainsAny(tok1, "+/=") {
		t.Fatalf("token %q is not base64url unpadded", tok1)
	}
	// 32 bytes of entropy encodes to 43 base64url chars.
	if len(tok1) != 43 {
		t.Fatalf("token length %d, want 43", len(tok1))
	}
}

func TestDeriveArgon2idKey(t *testing.T) {
	params := DefaultArgon2idParams()
	params.MemoryKiB = 8 * 1024 // keep the test fast
	salt := []byte("0123456789abcdef")

	k1, err := DeriveArgon2idKey("offline pass", salt, params)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := DeriveArgon2idKey("offline pass", salt, params)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("derivation must be deterministic")
	}

	k3, err := DeriveArgon2idKey("other pass", salt, params)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if bytes.Equal(k1, k3) {
		t.Fatal("different passphrases must derive different keys")
	}

	if _, err := DeriveArgon2idKey("pass", nil, params); err == nil {
		t.Fatal("expected failure for empty salt")
	}

	bad := params
	bad.KeyLen = 16
	if _, err := DeriveArgon2idKey("pass", salt, bad); err == nil {
		t.Fatal("expected failure for non-32-byte key length")
	}
}

func TestNormalize(t *testing.T) {
	// U+00E9 vs e + combining acute must normalize identically.
	if Normalize("café") != Normalize("café") {
		t.Fatal("NFKD forms should match")
	}
}

func TestWipeBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	WipeBytes(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not wiped", i)
		}
	}
}

func TestB64URLRoundTrip(t *testing.T) {
	b := []byte{0xff, 0xee, 0x00, 0x01}
	got, err := B64URLDecode(B64URLEncode(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, b) {
		t.Fatalf("got %v, want %v", got, b)
	}
}
