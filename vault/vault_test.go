package vault

import (
	"bytes"
	"errors"
	"testing"
)

func testKey(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := NewWithKey(testKey(0x11))
	if err != nil {
		t.Fatalf("NewWithKey: %v", err)
	}

	secrets := []string{
		"",
		"sk-live-abcdef0123456789",
		"multi\nline\tsecret",
		string([]byte{0x00, 0xff, 0x7f, 0x01}),
	}
	for _, secret := range secrets {
		blob, err := v.Encrypt(secret)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", secret, err)
		}
		got, err := v.Decrypt(blob)
		if err != nil {
			t.Fatalf("Decrypt(%q): %v", secret, err)
		}
		if got != secret {
			t.Fatalf("round trip mismatch: got %q want %q", got, secret)
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	v, _ := NewWithKey(testKey(0x22))
	a, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Fatal("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestDecryptWithWrongKeyFailsClosed(t *testing.T) {
	v1, _ := NewWithKey(testKey(0x33))
	v2, _ := NewWithKey(testKey(0x44))

	blob, err := v1.Encrypt("top secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := v2.Decrypt(blob)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got err=%v plaintext=%q", err, got)
	}
	if got != "" {
		t.Fatalf("wrong-key decrypt leaked plaintext %q", got)
	}
}

func TestDecryptTamperedBlobFails(t *testing.T) {
	v, _ := NewWithKey(testKey(0x55))
	blob, err := v.Encrypt("tamper me")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Flip one character of the base64 payload.
	raw := []byte(blob)
	mid := len(raw) / 2
	if raw[mid] == 'A' {
		raw[mid] = 'B'
	} else {
		raw[mid] = 'A'
	}
	if _, err := v.Decrypt(string(raw)); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity for tampered blob, got %v", err)
	}

	if _, err := v.Decrypt("not-base64!!!"); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity for undecodable blob, got %v", err)
	}
	if _, err := v.Decrypt(""); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity for empty blob, got %v", err)
	}
}

func TestNewWithKeyRejectsBadLength(t *testing.T) {
	if _, err := NewWithKey(bytes.Repeat([]byte{1}, 16)); err == nil {
		t.Fatal("expected error for 16-byte key")
	}
}
