package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var sealInfo = []byte("connectM token sealing v1")

// ErrUnsealable is returned when a sealed value is malformed or was sealed with another key
var ErrUnsealable = errors.New("sealed value cannot be opened")

// Sealer encrypts provider credentials at rest with NaCl secretbox
type Sealer struct {
	key [keySize]byte
}

// NewSealer derives the sealing key from secret
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("token encryption key is required")
	}

	s := &Sealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, sealInfo)
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("error deriving sealing key: %w", err)
	}
	return s, nil
}

// Seal encrypts plaintext. Empty values stay empty.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("error generating nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal
func (s *Sealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrUnsealable
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrUnsealable
	}
	return string(plaintext), nil
}
