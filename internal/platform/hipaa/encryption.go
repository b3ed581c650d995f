package hipaa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// TokenSealer provides AES-256-GCM encryption for credentials held at rest,
// such as the clinical backend token stored inside a session.
type TokenSealer struct {
	aead cipher.AEAD
}

// NewTokenSealer creates a TokenSealer with the given 32-byte AES-256 key.
func NewTokenSealer(key []byte) (*TokenSealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("token sealer: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("token sealer: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("token sealer: create GCM: %w", err)
	}

	return &TokenSealer{aead: aead}, nil
}

// NewTokenSealerFromHex decodes a 64-character hex key. An empty key yields
// a sealer with a random per-process key; tokens sealed by it do not survive
// a restart.
func NewTokenSealerFromHex(hexKey string) (*TokenSealer, bool, error) {
	if hexKey == "" {
		key := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, false, fmt.Errorf("token sealer: generate key: %w", err)
		}
		s, err := NewTokenSealer(key)
		return s, true, err
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, false, fmt.Errorf("token sealer: decode key: %w", err)
	}
	s, err := NewTokenSealer(key)
	return s, false, err
}

// Seal encrypts the plaintext and returns base64 of nonce + ciphertext.
func (s *TokenSealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("seal: generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s *TokenSealer) Open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("open: base64 decode: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("open: ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(plaintext), nil
}
