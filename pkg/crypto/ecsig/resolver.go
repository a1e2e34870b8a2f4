package ecsig

import "crypto/ecdsa"

// KeyResolver maps key ids to verifiers.
type KeyResolver interface {
	Resolve(keyID string) (Verifier, bool)
}

// MapResolver is a KeyResolver backed by a map.
type MapResolver map[string]Verifier

// NewMapResolver builds a resolver for the given public keys.
func NewMapResolver(pubs ...*ecdsa.PublicKey) (MapResolver, error) {
	m := make(MapResolver, len(pubs))
	for _, pub := range pubs {
		v, err := NewP256Verifier(pub)
		if err != nil {
			return nil, err
		}
		m[v.KeyID()] = v
	}
	return m, nil
}

// Resolve implements KeyResolver.
func (m MapResolver) Resolve(keyID string) (Verifier, bool) {
	v, ok := m[keyID]
	return v, ok
}

// LoadResolver loads PEM public keys from paths into a resolver.
func LoadResolver(paths ...string) (MapResolver, error) {
	pubs := make([]*ecdsa.PublicKey, 0, len(paths))
	for _, p := range paths {
		pub, err := LoadPublicKeyFile(p)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return NewMapResolver(pubs...)
}
