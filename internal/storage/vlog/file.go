package vlog

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
	"github.com/erik-marten/VeriLog/pkg/crypto/aead"
)

// File permissions.
const (
	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750
)

const writeBufferSize = 64 << 10

// Options configures OpenFile.
type Options struct {
	// Cipher seals records. Required.
	Cipher *aead.Cipher

	// AADPrefix is recorded in the header of a new file. Existing files
	// keep the prefix from their own header.
	AADPrefix string

	// Anchor is recorded in the header of a new file.
	Anchor *ChainAnchor

	// Rand is the nonce source. Defaults to crypto/rand.
	Rand io.Reader

	// Logger receives recovery diagnostics. Defaults to logger.Default().
	Logger logger.Logger

	// Now is the clock used for header timestamps.
	Now func() time.Time
}

// File is an open VeriLog file positioned for append.
//
// File is not safe for concurrent use; it is owned by a single writer.
type File struct {
	path   string
	file   *os.File
	buf    *bufio.Writer
	header *Header
	cipher *aead.Cipher
	rand   io.Reader
	log    logger.Logger

	size         int64
	nextSeq      uint64
	frames       int
	lastFrameOff int64
	closed       bool
}

// OpenFile opens or creates the VeriLog file at path.
//
// A missing or empty file gets a fresh header. An existing file has its
// header validated and is recovered: any trailing partial frame is cut off
// and the truncation is synced before the file is returned.
func OpenFile(path string, opts Options) (*File, error) {
	if opts.Cipher == nil {
		return nil, errors.New("vlog: cipher is required")
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("vlog: create dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, DefaultFilePerm)
	if err != nil {
		return nil, fmt.Errorf("vlog: open %s: %w", path, err)
	}

	f := &File{
		path:         path,
		file:         file,
		cipher:       opts.Cipher,
		rand:         opts.Rand,
		log:          opts.Logger.With("file", filepath.Base(path)),
		lastFrameOff: -1,
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("vlog: stat %s: %w", path, err)
	}

	if stat.Size() == 0 {
		err = f.writeHeader(newHeader(opts.AADPrefix, opts.Anchor, opts.Now()))
	} else {
		err = f.recover(stat.Size())
	}
	if err != nil {
		file.Close()
		return nil, err
	}

	if _, err := file.Seek(f.size, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("vlog: seek: %w", err)
	}
	f.buf = bufio.NewWriterSize(file, writeBufferSize)
	return f, nil
}

func (f *File) writeHeader(h *Header) error {
	data, err := encodeHeader(h)
	if err != nil {
		return err
	}
	if _, err := f.file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("vlog: write header: %w", err)
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("vlog: sync header: %w", err)
	}
	h.DataOffset = int64(len(data))
	f.header = h
	f.size = h.DataOffset
	f.nextSeq = h.StartSeq()
	return nil
}

// recover validates the header, truncates after the last complete frame
// and resumes the sequence counter from frame headers.
func (f *File) recover(size int64) error {
	h, err := ReadHeader(f.file)
	if err != nil {
		return err
	}
	f.header = h

	scan, err := scanFrames(f.file, h.DataOffset, size)
	if err != nil {
		return err
	}

	if scan.end != size {
		if err := f.file.Truncate(scan.end); err != nil {
			return fmt.Errorf("vlog: truncate: %w", err)
		}
		if err := f.file.Sync(); err != nil {
			return fmt.Errorf("vlog: sync truncate: %w", err)
		}
		f.log.Warn("truncated partial frame",
			"discarded_bytes", size-scan.end,
			"valid_frames", scan.frames)
	}

	f.size = scan.end
	f.frames = scan.frames
	f.lastFrameOff = scan.lastOff
	if scan.frames > 0 {
		f.nextSeq = scan.maxSeq + 1
	} else {
		f.nextSeq = h.StartSeq()
	}
	return nil
}

type scanResult struct {
	end     int64
	frames  int
	maxSeq  uint64
	lastOff int64
}

// scanFrames walks complete frames from start. It stops at the first
// partial length prefix, implausible length or payload running past size.
func scanFrames(r io.ReaderAt, start, size int64) (scanResult, error) {
	res := scanResult{end: start, lastOff: -1}
	var head [LenPrefixSize + 1 + 8]byte

	off := start
	for size-off >= LenPrefixSize+1+8 {
		if _, err := r.ReadAt(head[:], off); err != nil {
			return res, fmt.Errorf("vlog: scan at %d: %w", off, err)
		}
		n := binary.BigEndian.Uint32(head[:LenPrefixSize])
		if !validPayloadLen(n) {
			break
		}
		end := off + LenPrefixSize + int64(n)
		if end > size {
			break
		}

		_, seq, _ := DecodeFrameHeader(head[LenPrefixSize:])
		if seq > res.maxSeq {
			res.maxSeq = seq
		}
		res.frames++
		res.lastOff = off
		off = end
		res.end = end
	}
	return res, nil
}

// Append seals plaintext and appends it as a frame.
func (f *File) Append(typ byte, seq uint64, plaintext []byte) error {
	if f.closed {
		return errors.New("vlog: file is closed")
	}
	nonce, err := aead.NewNonce(f.rand)
	if err != nil {
		return err
	}
	sealed, err := f.cipher.Seal(nonce, plaintext, f.header.AADFor(seq, typ))
	if err != nil {
		return fmt.Errorf("vlog: seal seq %d: %w", seq, err)
	}
	frame, err := encodeFrame(typ, seq, nonce, sealed)
	if err != nil {
		return err
	}

	if _, err := f.buf.Write(frame); err != nil {
		return fmt.Errorf("vlog: write frame: %w", err)
	}
	f.lastFrameOff = f.size
	f.size += int64(len(frame))
	f.frames++
	if seq >= f.nextSeq {
		f.nextSeq = seq + 1
	}
	return nil
}

// Flush writes buffered frames to the OS and, with sync set, to stable
// storage.
func (f *File) Flush(sync bool) error {
	if f.closed {
		return nil
	}
	if err := f.buf.Flush(); err != nil {
		return fmt.Errorf("vlog: flush: %w", err)
	}
	if sync {
		if err := f.file.Sync(); err != nil {
			return fmt.Errorf("vlog: sync: %w", err)
		}
	}
	return nil
}

// Close flushes buffered frames and closes the file. It does not sync.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	flushErr := f.buf.Flush()
	closeErr := f.file.Close()
	if flushErr != nil {
		return fmt.Errorf("vlog: flush: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("vlog: close: %w", closeErr)
	}
	return nil
}

// LastFrame returns the last complete frame, or nil for a file without frames.
func (f *File) LastFrame() (*Frame, error) {
	if f.lastFrameOff < 0 {
		return nil, nil
	}
	if err := f.Flush(false); err != nil {
		return nil, err
	}
	return readFrameAt(f.file, f.lastFrameOff, f.size)
}

// Decrypt opens a frame read from this file.
func (f *File) Decrypt(fr *Frame) ([]byte, error) {
	return Decrypt(f.cipher, f.header, fr)
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Header returns the file header.
func (f *File) Header() *Header {
	return f.header
}

// NextSeq returns max(seq)+1 over the frames in the file, or the header's
// start sequence for a file without frames.
func (f *File) NextSeq() uint64 {
	return f.nextSeq
}

// Size returns the file size including buffered frames.
func (f *File) Size() int64 {
	return f.size
}

// Frames returns the number of complete frames in the file.
func (f *File) Frames() int {
	return f.frames
}

func readFrameAt(r io.ReaderAt, off, size int64) (*Frame, error) {
	var lenBuf [LenPrefixSize]byte
	if _, err := r.ReadAt(lenBuf[:], off); err != nil {
		return nil, fmt.Errorf("vlog: read frame at %d: %w", off, err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if !validPayloadLen(n) {
		return nil, ErrInvalidFrameLength
	}
	if off+LenPrefixSize+int64(n) > size {
		return nil, ErrTruncatedFrame
	}
	payload := make([]byte, n)
	if _, err := r.ReadAt(payload, off+LenPrefixSize); err != nil {
		return nil, fmt.Errorf("vlog: read frame at %d: %w", off, err)
	}
	return decodeFrame(payload, off)
}
