package vlog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader iterates the frames of a VeriLog file.
type Reader struct {
	file   *os.File
	header *Header
	r      *bufio.Reader
	off    int64
	size   int64
}

// OpenReader opens path and decodes its header.
func OpenReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vlog: open %s: %w", path, err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("vlog: stat %s: %w", path, err)
	}
	r, err := NewReader(file, stat.Size())
	if err != nil {
		file.Close()
		return nil, err
	}
	r.file = file
	return r, nil
}

// NewReader reads frames from the first size bytes of src.
func NewReader(src io.ReaderAt, size int64) (*Reader, error) {
	h, err := ReadHeader(src)
	if err != nil {
		return nil, err
	}
	if h.DataOffset > size {
		return nil, ErrTruncatedHeader
	}
	return &Reader{
		header: h,
		r:      bufio.NewReader(io.NewSectionReader(src, h.DataOffset, size-h.DataOffset)),
		off:    h.DataOffset,
		size:   size,
	}, nil
}

// Header returns the file header.
func (r *Reader) Header() *Header {
	return r.header
}

// Offset returns the position of the next frame.
func (r *Reader) Offset() int64 {
	return r.off
}

// Next returns the next frame.
//
// It returns io.EOF at a clean end of file, ErrTruncatedFrame when the
// file ends inside a frame and ErrInvalidFrameLength for a length prefix
// outside the plausible range.
func (r *Reader) Next() (*Frame, error) {
	var lenBuf [LenPrefixSize]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedFrame
		}
		return nil, fmt.Errorf("vlog: read frame: %w", err)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if !validPayloadLen(n) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrameLength, n)
	}
	if r.off+LenPrefixSize+int64(n) > r.size {
		return nil, ErrTruncatedFrame
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedFrame
		}
		return nil, fmt.Errorf("vlog: read frame: %w", err)
	}

	fr, err := decodeFrame(payload, r.off)
	if err != nil {
		return nil, err
	}
	r.off += LenPrefixSize + int64(n)
	return fr, nil
}

// Close closes the underlying file when the reader owns one.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
