package storage

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealedValue is returned when a sealed value cannot be opened (truncated, tampered or wrong key).
var ErrSealedValue = errors.New("storage: sealed value cannot be opened")

// Sealed wraps a Store and encrypts every value with XChaCha20-Poly1305.
// The stored form is nonce||ciphertext; the key name is bound as additional data
// so a value copied under another key fails to open.
type Sealed struct {
	inner Store
	aead  cipher.AEAD
}

// NewSealed returns a Sealed store over inner using a 32-byte key.
func NewSealed(inner Store, key []byte) (*Sealed, error) {
	if inner == nil {
		return nil, errors.New("storage: sealed store requires an inner store")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("storage: sealed key: %w", err)
	}
	return &Sealed{inner: inner, aead: aead}, nil
}

// Get opens the value for key.
func (s *Sealed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	ns := s.aead.NonceSize()
	if len(raw) < ns+s.aead.Overhead() {
		return nil, false, fmt.Errorf("%w: %s", ErrSealedValue, key)
	}
	plain, err := s.aead.Open(nil, raw[:ns], raw[ns:], []byte(key))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", ErrSealedValue, key)
	}
	return plain, true, nil
}

// Set seals value and stores it at key.
func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("storage: nonce: %w", err)
	}
	return s.inner.Set(ctx, key, s.aead.Seal(nonce, nonce, value, []byte(key)))
}

// Delete removes keys from the inner store.
func (s *Sealed) Delete(ctx context.Context, keys ...string) error {
	return s.inner.Delete(ctx, keys...)
}

// Close closes the inner store.
func (s *Sealed) Close() error {
	return s.inner.Close()
}

// PingContext forwards to the wrapped store when it supports pinging.
func (s *Sealed) PingContext(ctx context.Context) error {
	if p, ok := s.inner.(interface{ PingContext(context.Context) error }); ok {
		return p.PingContext(ctx)
	}
	return nil
}
