package storage

import (
	"bytes"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Thread files can optionally be encrypted at rest with a passphrase-derived
// key. File layout: magic, argon2id salt, XChaCha20-Poly1305 nonce,
// ciphertext. The salt is per-file so identical threads never share
// ciphertext.

var cryptMagic = []byte("CONVOENC1")

const saltSize = 16

// Encryptor encrypts and decrypts thread files with a passphrase.
type Encryptor struct {
	passphrase []byte
}

func NewEncryptor(passphrase string) (*Encryptor, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption passphrase is empty")
	}
	return &Encryptor{passphrase: []byte(passphrase)}, nil
}

// IsEncrypted reports whether data carries the encrypted-file header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, cryptMagic)
}

func (e *Encryptor) deriveKey(salt []byte) []byte {
	return argon2.IDKey(e.passphrase, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
}

// Encrypt seals plaintext under a fresh salt and nonce.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(e.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(cryptMagic)+saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, cryptMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt opens a file produced by Encrypt.
func (e *Encryptor) Decrypt(data []byte) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, fmt.Errorf("not an encrypted thread file")
	}
	data = data[len(cryptMagic):]
	if len(data) < saltSize {
		return nil, fmt.Errorf("encrypted thread file truncated")
	}
	salt, data := data[:saltSize], data[saltSize:]

	aead, err := chacha20poly1305.NewX(e.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(data) < aead.NonceSize() {
		return nil, fmt.Errorf("encrypted thread file truncated")
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt (wrong passphrase?): %w", err)
	}
	return plaintext, nil
}
