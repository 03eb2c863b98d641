// Package vault encrypts OAuth refresh tokens at rest with AES-256-GCM.
// The master key comes from config; non-hex keys are stretched with Argon2id.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidKey       = errors.New("invalid encryption key")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Box seals and opens secrets with a single master key.
type Box struct {
	masterKey []byte // 32 bytes for AES-256
}

// New builds a Box from a hex-encoded 32-byte key, or derives one from an
// arbitrary passphrase when the value is not valid hex.
func New(masterKey string) (*Box, error) {
	if masterKey == "" {
		return nil, ErrInvalidKey
	}

	key, err := hex.DecodeString(masterKey)
	if err != nil || len(key) != 32 {
		salt := []byte("tortshark-vault-salt")
		key = argon2.IDKey([]byte(masterKey), salt, 3, 64*1024, 4, 32)
	}

	return &Box{masterKey: key}, nil
}

// Seal encrypts plaintext and returns (ciphertext base64, nonce hex).
func (b *Box) Seal(plaintext string) (string, string, error) {
	nonce := make([]byte, 12) // GCM standard nonce size
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := b.gcm()
	if err != nil {
		return "", "", err
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), hex.EncodeToString(nonce), nil
}

// Open decrypts a (ciphertext base64, nonce hex) pair produced by Seal.
func (b *Box) Open(ciphertext, nonceHex string) (string, error) {
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	gcm, err := b.gcm()
	if err != nil {
		return "", err
	}

	opened, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(opened), nil
}

func (b *Box) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.masterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
