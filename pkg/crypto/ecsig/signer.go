package ecsig

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// HashSize is the size of an entry hash.
const HashSize = sha256.Size

var (
	// ErrHashSize is returned when the entry hash is not 32 bytes.
	ErrHashSize = errors.New("ecsig: entry hash must be 32 bytes")

	// ErrNotP256 is returned for keys on any curve other than P-256.
	ErrNotP256 = errors.New("ecsig: key is not on curve P-256")
)

var (
	curveN     = elliptic.P256().Params().N
	curveHalfN = new(big.Int).Rsh(curveN, 1)
)

// Signer signs entry hashes.
type Signer interface {
	// Sign signs SHA-256(entryHash) and returns a raw r||s signature.
	Sign(entryHash []byte) ([]byte, error)
	// KeyID identifies the verifying key.
	KeyID() string
}

// Verifier checks entry hash signatures.
type Verifier interface {
	Verify(entryHash, sig []byte) bool
	KeyID() string
}

// P256Signer signs with an ECDSA P-256 private key.
//
// Nonces are derived deterministically (RFC 6979), so signing the same hash
// twice yields the same signature. Signatures are always low-S.
type P256Signer struct {
	priv  *ecdsa.PrivateKey
	keyID string
}

// NewP256Signer wraps priv.
func NewP256Signer(priv *ecdsa.PrivateKey) (*P256Signer, error) {
	if priv == nil || priv.Curve != elliptic.P256() {
		return nil, ErrNotP256
	}
	id, err := KeyID(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	return &P256Signer{priv: priv, keyID: id}, nil
}

// KeyID returns hex(SHA-256(SPKI DER)) of the public key.
func (s *P256Signer) KeyID() string {
	return s.keyID
}

// Public returns the verifying key.
func (s *P256Signer) Public() *ecdsa.PublicKey {
	return &s.priv.PublicKey
}

// Sign implements Signer.
func (s *P256Signer) Sign(entryHash []byte) ([]byte, error) {
	if len(entryHash) != HashSize {
		return nil, ErrHashSize
	}
	digest := sha256.Sum256(entryHash)

	// A nil random source selects deterministic RFC 6979 nonces.
	der, err := s.priv.Sign(nil, digest[:], crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("ecsig: sign: %w", err)
	}
	raw, err := DERToRaw(der)
	if err != nil {
		return nil, err
	}
	return NormalizeLowS(raw), nil
}

// P256Verifier verifies with an ECDSA P-256 public key.
type P256Verifier struct {
	pub   *ecdsa.PublicKey
	keyID string
}

// NewP256Verifier wraps pub.
func NewP256Verifier(pub *ecdsa.PublicKey) (*P256Verifier, error) {
	if pub == nil || pub.Curve != elliptic.P256() {
		return nil, ErrNotP256
	}
	id, err := KeyID(pub)
	if err != nil {
		return nil, err
	}
	return &P256Verifier{pub: pub, keyID: id}, nil
}

// KeyID returns hex(SHA-256(SPKI DER)) of the public key.
func (v *P256Verifier) KeyID() string {
	return v.keyID
}

// Verify reports whether sig is a valid low-S signature over
// SHA-256(entryHash).
func (v *P256Verifier) Verify(entryHash, sig []byte) bool {
	if len(entryHash) != HashSize || len(sig) != RawSize {
		return false
	}
	if !IsLowS(sig) {
		return false
	}
	der, err := RawToDER(sig)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(entryHash)
	return ecdsa.VerifyASN1(v.pub, digest[:], der)
}

// NormalizeLowS returns raw with s replaced by n-s when s > n/2.
func NormalizeLowS(raw []byte) []byte {
	if len(raw) != RawSize || IsLowS(raw) {
		return raw
	}
	s := new(big.Int).SetBytes(raw[ScalarSize:])
	s.Sub(curveN, s)

	out := make([]byte, RawSize)
	copy(out, raw[:ScalarSize])
	s.FillBytes(out[ScalarSize:])
	return out
}

// IsLowS reports whether the s half of raw is at most n/2.
func IsLowS(raw []byte) bool {
	if len(raw) != RawSize {
		return false
	}
	s := new(big.Int).SetBytes(raw[ScalarSize:])
	return s.Cmp(curveHalfN) <= 0
}

// KeyID computes hex(SHA-256(SPKI DER)) for pub.
func KeyID(pub *ecdsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("ecsig: marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:]), nil
}
