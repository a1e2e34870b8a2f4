// Package aead provides the record encryption codec for VeriLog files.
//
// Every frame payload is sealed with XChaCha20-Poly1305: a 32-byte subkey
// is derived from the data-encryption key and the first 16 bytes of the
// 24-byte nonce with HChaCha20, and the remaining 8 nonce bytes form the
// tail of a 12-byte IETF ChaCha20-Poly1305 nonce. The construction is
// bit-compatible with libsodium's crypto_aead_xchacha20poly1305_ietf.
//
// Usage:
//
//	c, err := aead.New(dek)
//	nonce, err := aead.RandomNonce()
//	sealed, err := c.Seal(nonce, plaintext, ad)
//	plaintext, err := c.Open(nonce, sealed, ad)
//
// Key and nonce length violations are reported as ErrKeySize and
// ErrNonceSize. Any tag mismatch is reported as ErrAuth.
package aead
