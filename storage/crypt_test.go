package storage

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor("correct horse")
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	plaintext := []byte(`{"id":"abc","messages":[]}`)
	sealed, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !IsEncrypted(sealed) {
		t.Error("IsEncrypted() = false for sealed data")
	}
	if bytes.Contains(sealed, []byte("messages")) {
		t.Error("ciphertext contains plaintext")
	}

	opened, err := enc.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("round trip = %q, want %q", opened, plaintext)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	enc, _ := NewEncryptor("right")
	sealed, err := enc.Encrypt([]byte("data"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	wrong, _ := NewEncryptor("wrong")
	if _, err := wrong.Decrypt(sealed); err == nil {
		t.Error("Decrypt() with wrong passphrase succeeded")
	}
}

func TestEncryptUniqueCiphertext(t *testing.T) {
	enc, _ := NewEncryptor("pass")
	a, _ := enc.Encrypt([]byte("same"))
	b, _ := enc.Encrypt([]byte("same"))
	if bytes.Equal(a, b) {
		t.Error("two encryptions of identical plaintext are identical")
	}
}

func TestNewEncryptorRejectsEmptyPassphrase(t *testing.T) {
	if _, err := NewEncryptor(""); err == nil {
		t.Error("NewEncryptor(\"\") error = nil, want error")
	}
}

func TestDecryptRejectsPlaintext(t *testing.T) {
	enc, _ := NewEncryptor("pass")
	if _, err := enc.Decrypt([]byte(`{"plain":"json"}`)); err == nil {
		t.Error("Decrypt() of plaintext succeeded, want error")
	}
}
