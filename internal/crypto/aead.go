// Package crypto seals and opens vault payloads with AES-256-GCM and scores
// password strength.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// KeySize is the length of a data-encryption key.
	KeySize = 32
	// NonceSize is the GCM nonce length prepended to every sealed payload.
	NonceSize = 12
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

var (
	// ErrAuthenticationFailed is returned by Open for any payload that does
	// not authenticate. It deliberately does not say why.
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")
	// ErrInvalidKey indicates a key of the wrong length or a destroyed key.
	ErrInvalidKey = errors.New("crypto: invalid key")
)

// Key is an opaque handle to a data-encryption key.
type Key struct {
	b *[KeySize]byte
}

// NewKey copies raw into a new Key. raw itself is left untouched.
func NewKey(raw []byte) (Key, error) {
	if len(raw) != KeySize {
		return Key{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, KeySize, len(raw))
	}
	var b [KeySize]byte
	copy(b[:], raw)
	return Key{b: &b}, nil
}

// Valid reports whether k holds key material.
func (k Key) Valid() bool { return k.b != nil }

// Destroy zeroes the key material. Copies of k share it and become unusable.
func (k Key) Destroy() {
	if k.b == nil {
		return
	}
	Zero(k.b[:])
}

func (k Key) aead() (cipher.AEAD, error) {
	if k.b == nil {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(k.b[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// Seal encrypts plaintext under key with a fresh random nonce and returns
// nonce || ciphertext || tag.
func Seal(plaintext []byte, key Key) ([]byte, error) {
	aead, err := key.aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a payload produced by Seal.
func Open(sealed []byte, key Key) ([]byte, error) {
	aead, err := key.aead()
	if err != nil {
		return nil, err
	}
	if len(sealed) < NonceSize+aead.Overhead() {
		return nil, ErrAuthenticationFailed
	}
	pt, err := aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return pt, nil
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
