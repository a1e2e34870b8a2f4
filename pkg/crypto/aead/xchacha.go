package aead

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sizes of the XChaCha20-Poly1305 construction.
const (
	KeySize   = chacha20poly1305.KeySize
	NonceSize = chacha20poly1305.NonceSizeX
	Overhead  = chacha20poly1305.Overhead

	// Algorithm is the identifier recorded in file headers.
	Algorithm = "XChaCha20-Poly1305"

	hNonceSize = 16
)

// Codec errors.
var (
	ErrKeySize   = errors.New("aead: key must be 32 bytes")
	ErrNonceSize = errors.New("aead: nonce must be 24 bytes")
	ErrAuth      = errors.New("aead: message authentication failed")
)

// Cipher seals and opens records under a single data-encryption key.
//
// A Cipher holds a private copy of the key; call Zero when done with it.
// It is safe for concurrent use as long as Zero is not called concurrently.
type Cipher struct {
	key [KeySize]byte
}

// New creates a Cipher for the given 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	c := &Cipher{}
	copy(c.key[:], key)
	return c, nil
}

// Algorithm returns the algorithm identifier.
func (c *Cipher) Algorithm() string {
	return Algorithm
}

// NonceSize returns the nonce size in bytes.
func (c *Cipher) NonceSize() int {
	return NonceSize
}

// Overhead returns the authentication tag size in bytes.
func (c *Cipher) Overhead() int {
	return Overhead
}

// Seal encrypts plaintext and returns ciphertext||tag.
func (c *Cipher) Seal(nonce, plaintext, additionalData []byte) ([]byte, error) {
	return Encrypt(c.key[:], nonce, plaintext, additionalData)
}

// Open authenticates and decrypts ciphertext||tag.
func (c *Cipher) Open(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	return Decrypt(c.key[:], nonce, ciphertext, additionalData)
}

// Zero wipes the key held by the cipher.
func (c *Cipher) Zero() {
	for i := range c.key {
		c.key[i] = 0
	}
}

// Encrypt seals plaintext under key and a 24-byte nonce.
func Encrypt(key, nonce, plaintext, additionalData []byte) ([]byte, error) {
	inner, innerNonce, err := innerAEAD(key, nonce)
	if err != nil {
		return nil, err
	}
	return inner.Seal(nil, innerNonce, plaintext, additionalData), nil
}

// Decrypt opens ciphertext||tag under key and a 24-byte nonce.
func Decrypt(key, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	inner, innerNonce, err := innerAEAD(key, nonce)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < Overhead {
		return nil, ErrAuth
	}
	plaintext, err := inner.Open(nil, innerNonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrAuth
	}
	return plaintext, nil
}

// RandomNonce draws a fresh nonce from crypto/rand.
func RandomNonce() ([]byte, error) {
	return NewNonce(rand.Reader)
}

// NewNonce reads a nonce from r.
func NewNonce(r io.Reader) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, fmt.Errorf("aead: read nonce: %w", err)
	}
	return nonce, nil
}

// DeriveSubkey computes HChaCha20(key, nonce[:16]).
func DeriveSubkey(key, nonce []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	if len(nonce) != NonceSize {
		return nil, ErrNonceSize
	}
	subkey, err := chacha20.HChaCha20(key, nonce[:hNonceSize])
	if err != nil {
		return nil, fmt.Errorf("aead: hchacha20: %w", err)
	}
	return subkey, nil
}

// innerAEAD sets up the IETF ChaCha20-Poly1305 instance for one message.
// The 12-byte inner nonce is 4 zero bytes followed by nonce[16:24].
func innerAEAD(key, nonce []byte) (cipher.AEAD, []byte, error) {
	subkey, err := DeriveSubkey(key, nonce)
	if err != nil {
		return nil, nil, err
	}
	defer zero(subkey)

	inner, err := chacha20poly1305.New(subkey)
	if err != nil {
		return nil, nil, fmt.Errorf("aead: init: %w", err)
	}

	innerNonce := make([]byte, chacha20poly1305.NonceSize)
	copy(innerNonce[4:], nonce[hNonceSize:])
	return inner, innerNonce, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
