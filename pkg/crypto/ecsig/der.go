// Package ecsig implements the ECDSA P-256 signatures that bind log entries.
//
// Signatures travel as 64-byte raw r||s values (each half 32 bytes,
// big-endian, zero padded). RawToDER and DERToRaw convert between that
// form and an ASN.1 SEQUENCE of two INTEGERs. Only short-form DER lengths
// are accepted, which covers every P-256 signature.
package ecsig

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

const (
	// ScalarSize is the byte length of r and s.
	ScalarSize = 32

	// RawSize is the byte length of a raw r||s signature.
	RawSize = 2 * ScalarSize

	maxShortLen = 127
)

var (
	// ErrRawSize is returned when a raw signature is not 64 bytes.
	ErrRawSize = errors.New("ecsig: raw signature must be 64 bytes")

	// ErrMalformedDER is returned for DER input that is not a short-form
	// SEQUENCE of two non-negative INTEGERs fitting in 32 bytes.
	ErrMalformedDER = errors.New("ecsig: malformed DER signature")
)

// RawToDER encodes a raw r||s signature as DER.
func RawToDER(raw []byte) ([]byte, error) {
	if len(raw) != RawSize {
		return nil, ErrRawSize
	}
	r := derInteger(raw[:ScalarSize])
	s := derInteger(raw[ScalarSize:])

	if 2+len(r)+2+len(s) > maxShortLen {
		return nil, fmt.Errorf("%w: length exceeds short form", ErrMalformedDER)
	}

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		seq.AddASN1(asn1.INTEGER, func(c *cryptobyte.Builder) { c.AddBytes(r) })
		seq.AddASN1(asn1.INTEGER, func(c *cryptobyte.Builder) { c.AddBytes(s) })
	})
	return b.Bytes()
}

// DERToRaw decodes a DER signature into raw r||s form.
func DERToRaw(der []byte) ([]byte, error) {
	if len(der) < 2 || der[1]&0x80 != 0 {
		return nil, ErrMalformedDER
	}

	input := cryptobyte.String(der)
	var seq, r, s cryptobyte.String
	if !input.ReadASN1(&seq, asn1.SEQUENCE) || !input.Empty() {
		return nil, ErrMalformedDER
	}
	if !seq.ReadASN1(&r, asn1.INTEGER) || !seq.ReadASN1(&s, asn1.INTEGER) || !seq.Empty() {
		return nil, ErrMalformedDER
	}

	raw := make([]byte, RawSize)
	if err := putScalar(raw[:ScalarSize], r); err != nil {
		return nil, err
	}
	if err := putScalar(raw[ScalarSize:], s); err != nil {
		return nil, err
	}
	return raw, nil
}

// derInteger returns the minimal non-negative INTEGER content for a
// big-endian unsigned value.
func derInteger(be []byte) []byte {
	i := 0
	for i < len(be)-1 && be[i] == 0 {
		i++
	}
	v := be[i:]
	if v[0]&0x80 != 0 {
		out := make([]byte, len(v)+1)
		copy(out[1:], v)
		return out
	}
	return append([]byte(nil), v...)
}

// putScalar left-pads an INTEGER's content into dst.
func putScalar(dst []byte, v []byte) error {
	if len(v) == 0 || v[0]&0x80 != 0 {
		return ErrMalformedDER
	}
	if len(v) > 1 && v[0] == 0 {
		v = v[1:]
	}
	if len(v) > len(dst) {
		return fmt.Errorf("%w: integer larger than %d bytes", ErrMalformedDER, len(dst))
	}
	copy(dst[len(dst)-len(v):], v)
	return nil
}
