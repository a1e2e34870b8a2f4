package config

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/erik-marten/VeriLog/pkg/crypto/aead"
	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

// Argon2id parameters for passphrase-derived keys.
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4

	// MinSaltLength is the shortest accepted Argon2id salt.
	MinSaltLength = 16
)

var (
	// ErrNoDEK is returned when no DEK source is configured.
	ErrNoDEK = errors.New("config: no data-encryption key configured")

	// ErrKeyLength is returned for keys that are not 32 bytes.
	ErrKeyLength = errors.New("config: key must be 32 bytes")

	// ErrKeyEncoding is returned for keys that are neither hex nor base64.
	ErrKeyEncoding = errors.New("config: key is neither hex nor base64")

	// ErrNoSigningKey is returned when the writer has no signing key.
	ErrNoSigningKey = errors.New("config: keys.signing_key_file is required")
)

func (k *KeysSection) dekSources() int {
	n := 0
	for _, s := range []string{k.DEK, k.DEKFile, k.Passphrase, k.MasterKey} {
		if s != "" {
			n++
		}
	}
	return n
}

// ParseKey decodes a 32-byte key given as 64 hex characters or as
// standard, URL-safe or unpadded base64.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) == 2*aead.KeySize {
		if key, err := hex.DecodeString(s); err == nil {
			return key, nil
		}
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		key, err := enc.DecodeString(s)
		if err != nil {
			continue
		}
		if len(key) != aead.KeySize {
			return nil, fmt.Errorf("%w: got %d", ErrKeyLength, len(key))
		}
		return key, nil
	}
	if isHex(s) {
		return nil, fmt.Errorf("%w: got %d hex characters", ErrKeyLength, len(s))
	}
	return nil, ErrKeyEncoding
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil && s != ""
}

// LoadDEK returns the data-encryption key selected by k. The caller owns the
// returned slice and should zero it when done.
func (k *KeysSection) LoadDEK() ([]byte, error) {
	switch {
	case k.dekSources() == 0:
		return nil, ErrNoDEK
	case k.dekSources() > 1:
		return nil, errors.New("config: more than one DEK source configured")
	case k.DEK != "":
		return ParseKey(k.DEK)
	case k.DEKFile != "":
		return readKeyFile(k.DEKFile)
	case k.Passphrase != "":
		return derivePassphraseKey(k.Passphrase, k.Salt)
	default:
		return deriveMasterKey(k.MasterKey, k.HKDFInfo)
	}
}

// readKeyFile accepts a file holding the raw 32 bytes or a hex/base64 text.
func readKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read dek file: %w", err)
	}
	if len(data) == aead.KeySize {
		return data, nil
	}
	key, err := ParseKey(string(data))
	zero(data)
	return key, err
}

func derivePassphraseKey(passphrase, saltText string) ([]byte, error) {
	salt, err := hex.DecodeString(strings.TrimSpace(saltText))
	if err != nil {
		return nil, fmt.Errorf("config: keys.salt must be hex: %w", err)
	}
	if len(salt) < MinSaltLength {
		return nil, fmt.Errorf("config: keys.salt must be at least %d bytes", MinSaltLength)
	}
	return argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, aead.KeySize), nil
}

func deriveMasterKey(masterText, info string) ([]byte, error) {
	master, err := ParseKey(masterText)
	if err != nil {
		return nil, fmt.Errorf("config: keys.master_key: %w", err)
	}
	defer zero(master)
	if info == "" {
		info = DefaultHKDFInfo
	}

	key := make([]byte, aead.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("config: derive dek: %w", err)
	}
	return key, nil
}

// Signer loads the writer's signing key.
func (k *KeysSection) Signer() (*ecsig.P256Signer, error) {
	if k.SigningKeyFile == "" {
		return nil, ErrNoSigningKey
	}
	priv, err := ecsig.LoadPrivateKeyFile(k.SigningKeyFile)
	if err != nil {
		return nil, err
	}
	return ecsig.NewP256Signer(priv)
}

// Resolver loads the trusted public keys.
func (k *KeysSection) Resolver() (ecsig.MapResolver, error) {
	return ecsig.LoadResolver(k.PublicKeyFiles...)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
