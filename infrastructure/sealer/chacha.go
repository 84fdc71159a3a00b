// Package sealer provides the authenticated encryption a trusted
// application applies to data before it crosses to the host.
package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/splitworld/tee-sdk/domain/ports"
)

// ChaCha seals with XChaCha20-Poly1305. Each sealed value is
// nonce || ciphertext || tag.
type ChaCha struct {
	aead cipher.AEAD
}

var _ ports.Sealer = (*ChaCha)(nil)

// NewChaCha creates a sealer from a 32-byte key.
func NewChaCha(key []byte) (*ChaCha, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("sealer: %w", err)
	}
	return &ChaCha{aead: aead}, nil
}

// NewRandomChaCha creates a sealer with a fresh random key that never
// leaves the process.
func NewRandomChaCha() (*ChaCha, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("sealer: generate key: %w", err)
	}
	defer clear(key)
	return NewChaCha(key)
}

func (c *ChaCha) Seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.Overhead()+len(plain))
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("sealer: generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plain, nil), nil
}

func (c *ChaCha) Open(sealed []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < c.Overhead() {
		return nil, fmt.Errorf("sealer: sealed value too short")
	}
	plain, err := c.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("sealer: %w", err)
	}
	return plain, nil
}

// Overhead is the nonce plus the authentication tag.
func (c *ChaCha) Overhead() int {
	return c.aead.NonceSize() + c.aead.Overhead()
}
