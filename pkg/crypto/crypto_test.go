package crypto

import (
	"strings"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	t.Parallel()

	key, err := ParseKey("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}

	enc, err := Encrypt("imap-auth-code", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if strings.Contains(enc, "imap-auth-code") {
		t.Fatal("ciphertext contains plaintext")
	}

	got, err := Decrypt(enc, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "imap-auth-code" {
		t.Errorf("Decrypt: got %q, want %q", got, "imap-auth-code")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	t.Parallel()

	enc, err := Encrypt("secret", []byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(enc, []byte("fedcba9876543210fedcba9876543210")); err == nil {
		t.Error("expected error decrypting with the wrong key")
	}
	if _, err := Decrypt("abcd", []byte("0123456789abcdef0123456789abcdef")); err == nil {
		t.Error("expected error for short ciphertext")
	}
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	hexKey := strings.Repeat("ab", 32)
	b, err := ParseKey(hexKey)
	if err != nil || len(b) != 32 {
		t.Errorf("ParseKey hex: got len %d err %v, want 32 nil", len(b), err)
	}
	if _, err := ParseKey("short"); err == nil {
		t.Error("ParseKey should reject a 5 byte key")
	}
}
