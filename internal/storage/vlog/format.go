package vlog

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/erik-marten/VeriLog/pkg/crypto/aead"
)

// File format constants.
const (
	Magic         = "VLOG"
	FormatVersion = 1
	FlagEncrypted = 0x01

	// FixedHeaderSize covers magic, version, flags and header length.
	FixedHeaderSize = 4 + 1 + 1 + 2

	// LenPrefixSize is the size of a frame's payload length prefix.
	LenPrefixSize = 4

	// FrameHeaderSize covers type, seq and nonce.
	FrameHeaderSize = 1 + 8 + aead.NonceSize

	// MinPayloadSize is the smallest payload holding an empty sealed record.
	MinPayloadSize = FrameHeaderSize + aead.Overhead

	// MaxPayloadSize bounds a single frame.
	MaxPayloadSize = 64 << 20

	maxHeaderJSON = 1<<16 - 1
)

// Frame types.
const (
	TypeLog byte = 1
)

// DefaultAADPrefix is the AAD prefix recorded in new files.
const DefaultAADPrefix = "VeriLog|v1"

var (
	ErrBadMagic           = errors.New("vlog: bad magic")
	ErrUnsupportedVersion = errors.New("vlog: unsupported version")
	ErrTruncatedHeader    = errors.New("vlog: truncated header")
	ErrBadHeader          = errors.New("vlog: malformed header JSON")
	ErrFrameTooLarge      = errors.New("vlog: frame exceeds maximum payload size")
	ErrTruncatedFrame     = errors.New("vlog: truncated frame")
	ErrInvalidFrameLength = errors.New("vlog: invalid frame length")
)

// ChainAnchor is the chain position the first entry of a file links to.
type ChainAnchor struct {
	StartSeq uint64 `json:"startSeq"`
	PrevHash string `json:"prevHash"`
}

// Header is the decoded file header.
type Header struct {
	V         int          `json:"v"`
	Alg       string       `json:"alg"`
	AAD       string       `json:"aad"`
	CreatedAt string       `json:"createdAt"`
	FileID    string       `json:"fileId,omitempty"`
	Chain     *ChainAnchor `json:"chain,omitempty"`

	// Version and Flags come from the fixed header bytes.
	Version byte `json:"-"`
	Flags   byte `json:"-"`

	// DataOffset is the position of the first frame.
	DataOffset int64 `json:"-"`
}

// AADFor returns the additional data for a frame of this file.
func (h *Header) AADFor(seq uint64, typ byte) []byte {
	return AAD(h.AAD, seq, typ)
}

// StartSeq returns the expected sequence of the first frame.
func (h *Header) StartSeq() uint64 {
	if h.Chain != nil && h.Chain.StartSeq > 0 {
		return h.Chain.StartSeq
	}
	return 1
}

// AAD builds prefix || 0x00 || seq || 0x00 || type.
func AAD(prefix string, seq uint64, typ byte) []byte {
	out := make([]byte, 0, len(prefix)+1+8+1+1)
	out = append(out, prefix...)
	out = append(out, 0x00)
	out = binary.BigEndian.AppendUint64(out, seq)
	out = append(out, 0x00, typ)
	return out
}

func newHeader(aadPrefix string, anchor *ChainAnchor, now time.Time) *Header {
	return &Header{
		V:         FormatVersion,
		Alg:       aead.Algorithm,
		AAD:       aadPrefix,
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
		FileID:    newFileID(now),
		Chain:     anchor,
		Version:   FormatVersion,
		Flags:     FlagEncrypted,
	}
}

// ids share one monotonic entropy source so ULIDs minted within the same
// millisecond still sort in creation order.
var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

func newULID(now time.Time) ulid.ULID {
	idMu.Lock()
	defer idMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(now), idEntropy)
	if err != nil {
		// Monotonic overflow within one millisecond; fall back to fresh entropy.
		return ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	}
	return id
}

func newFileID(now time.Time) string {
	return newULID(now).String()
}

func encodeHeader(h *Header) ([]byte, error) {
	body, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("vlog: marshal header: %w", err)
	}
	if len(body) > maxHeaderJSON {
		return nil, fmt.Errorf("vlog: header too large: %d bytes", len(body))
	}

	out := make([]byte, 0, FixedHeaderSize+len(body))
	out = append(out, Magic...)
	out = append(out, FormatVersion, FlagEncrypted)
	out = binary.BigEndian.AppendUint16(out, uint16(len(body)))
	out = append(out, body...)
	return out, nil
}

// ReadHeader decodes the header at the start of r.
func ReadHeader(r io.ReaderAt) (*Header, error) {
	var fixed [FixedHeaderSize]byte
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, FixedHeaderSize), fixed[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedHeader
		}
		return nil, fmt.Errorf("vlog: read header: %w", err)
	}
	if string(fixed[:4]) != Magic {
		return nil, ErrBadMagic
	}
	if fixed[4] != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, fixed[4])
	}

	headerLen := int64(binary.BigEndian.Uint16(fixed[6:8]))
	body := make([]byte, headerLen)
	if _, err := io.ReadFull(io.NewSectionReader(r, FixedHeaderSize, headerLen), body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedHeader
		}
		return nil, fmt.Errorf("vlog: read header: %w", err)
	}

	h := &Header{}
	if err := json.Unmarshal(body, h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	h.Version = fixed[4]
	h.Flags = fixed[5]
	h.DataOffset = FixedHeaderSize + headerLen
	return h, nil
}

// Frame is one decoded frame.
type Frame struct {
	Type       byte
	Seq        uint64
	Nonce      []byte
	Ciphertext []byte

	// Offset is the position of the frame's length prefix.
	Offset int64
}

// Size returns the encoded size of the frame including its length prefix.
func (f *Frame) Size() int64 {
	return int64(LenPrefixSize + FrameHeaderSize + len(f.Ciphertext))
}

// DecodeFrameHeader reads type and seq from the start of a frame payload.
func DecodeFrameHeader(payload []byte) (typ byte, seq uint64, err error) {
	if len(payload) < 1+8 {
		return 0, 0, ErrInvalidFrameLength
	}
	return payload[0], binary.BigEndian.Uint64(payload[1:9]), nil
}

func decodeFrame(payload []byte, offset int64) (*Frame, error) {
	if len(payload) < FrameHeaderSize {
		return nil, ErrInvalidFrameLength
	}
	typ, seq, err := DecodeFrameHeader(payload)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Type:       typ,
		Seq:        seq,
		Nonce:      payload[9:FrameHeaderSize],
		Ciphertext: payload[FrameHeaderSize:],
		Offset:     offset,
	}, nil
}

func encodeFrame(typ byte, seq uint64, nonce, sealed []byte) ([]byte, error) {
	payloadLen := FrameHeaderSize + len(sealed)
	if payloadLen > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	out := make([]byte, 0, LenPrefixSize+payloadLen)
	out = binary.BigEndian.AppendUint32(out, uint32(payloadLen))
	out = append(out, typ)
	out = binary.BigEndian.AppendUint64(out, seq)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// validPayloadLen reports whether n is a plausible frame payload length.
func validPayloadLen(n uint32) bool {
	return n >= MinPayloadSize && n <= MaxPayloadSize
}

// Decrypt opens a frame's record using the file header's AAD prefix.
func Decrypt(c *aead.Cipher, h *Header, f *Frame) ([]byte, error) {
	return c.Open(f.Nonce, f.Ciphertext, h.AADFor(f.Seq, f.Type))
}
