package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func testKey() []byte {
	return []byte("01234567890123456789012345678901")
}

func TestSealer_RoundTrip(t *testing.T) {
	sealer, err := NewSealer(testKey())
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	plaintext := []byte(`{"access_token":"ya29.abc"}`)
	blob, err := sealer.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if len(blob) < 1+nonceSize {
		t.Fatalf("blob too short: %d bytes", len(blob))
	}
	if blob[0] != sealVersion {
		t.Errorf("version byte: got %d, want %d", blob[0], sealVersion)
	}
	if bytes.Contains(blob, []byte("ya29")) {
		t.Error("sealed blob contains plaintext")
	}

	opened, err := sealer.Open(blob)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Open: got %q, want %q", opened, plaintext)
	}
}

func TestSealer_UniqueNonce(t *testing.T) {
	sealer, _ := NewSealer(testKey())

	a, _ := sealer.Seal([]byte("same"))
	b, _ := sealer.Seal([]byte("same"))
	if bytes.Equal(a, b) {
		t.Error("expected different blobs for the same plaintext")
	}
}

func TestNewSealer_InvalidKeySize(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		_, err := NewSealer(make([]byte, size))
		if !errors.Is(err, ErrInvalidKeySize) {
			t.Errorf("size %d: expected ErrInvalidKeySize, got %v", size, err)
		}
	}
}

func TestSealer_Open_WrongKey(t *testing.T) {
	sealer1, _ := NewSealer(testKey())
	sealer2, _ := NewSealer([]byte("abcdefghijklmnopqrstuvwxyz012345"))

	blob, _ := sealer1.Seal([]byte("secret"))
	if _, err := sealer2.Open(blob); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSealer_Open_Tampered(t *testing.T) {
	sealer, _ := NewSealer(testKey())

	blob, _ := sealer.Seal([]byte("secret"))
	blob[len(blob)-1] ^= 0xff
	if _, err := sealer.Open(blob); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSealer_Open_TooSmall(t *testing.T) {
	sealer, _ := NewSealer(testKey())

	if _, err := sealer.Open([]byte{sealVersion, 1, 2}); !errors.Is(err, ErrInvalidBlobSize) {
		t.Errorf("expected ErrInvalidBlobSize, got %v", err)
	}
}

func TestSealer_Open_UnsupportedVersion(t *testing.T) {
	sealer, _ := NewSealer(testKey())

	blob, _ := sealer.Seal([]byte("secret"))
	blob[0] = 0x02
	if _, err := sealer.Open(blob); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey("correct horse battery staple")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if len(k1) != KeySize {
		t.Errorf("expected %d byte key, got %d", KeySize, len(k1))
	}

	k2, _ := DeriveKey("correct horse battery staple")
	if !bytes.Equal(k1, k2) {
		t.Error("expected derivation to be deterministic")
	}

	k3, _ := DeriveKey("another passphrase")
	if bytes.Equal(k1, k3) {
		t.Error("expected different passphrases to yield different keys")
	}

	if _, err := DeriveKey(""); !errors.Is(err, ErrEmptyPassphrase) {
		t.Errorf("expected ErrEmptyPassphrase, got %v", err)
	}
}

func TestNewSealerFromPassphrase(t *testing.T) {
	a, err := NewSealerFromPassphrase("pass")
	if err != nil {
		t.Fatalf("NewSealerFromPassphrase: %v", err)
	}
	b, _ := NewSealerFromPassphrase("pass")

	blob, _ := a.Seal([]byte("shared"))
	if _, err := b.Open(blob); err != nil {
		t.Errorf("expected sealers from the same passphrase to interoperate: %v", err)
	}
}
