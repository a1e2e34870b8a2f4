package verify

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/erik-marten/VeriLog/internal/core/chain"
	"github.com/erik-marten/VeriLog/internal/storage/vlog"
	"github.com/erik-marten/VeriLog/pkg/crypto/aead"
	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

// VisitFunc receives each entry after it has verified. Returning an error
// stops the replay and the error is returned to the caller.
type VisitFunc func(e *chain.Entry) error

// VerifyFile verifies a single file.
//
// The expected chain position starts at the anchor recorded in the file
// header (seq 1 and the genesis hash when absent). With tolerateTruncated
// a partial frame at the very end of the file ends the replay cleanly.
func VerifyFile(path string, key []byte, keys ecsig.KeyResolver, tolerateTruncated bool) (Report, error) {
	return Replay(path, key, keys, tolerateTruncated, nil)
}

// ReadEntries verifies path and returns the entries that verified. On
// failure the entries before the failing one are returned with the report.
func ReadEntries(path string, key []byte, keys ecsig.KeyResolver, tolerateTruncated bool) ([]*chain.Entry, Report, error) {
	var entries []*chain.Entry
	rep, err := Replay(path, key, keys, tolerateTruncated, func(e *chain.Entry) error {
		entries = append(entries, e)
		return nil
	})
	return entries, rep, err
}

// Replay verifies path like VerifyFile and calls visit for every entry that
// verified, in sequence order.
func Replay(path string, key []byte, keys ecsig.KeyResolver, tolerateTruncated bool, visit VisitFunc) (Report, error) {
	c, err := aead.New(key)
	if err != nil {
		return Report{}, err
	}
	defer c.Zero()

	rep := Report{Path: path}

	r, err := vlog.OpenReader(path)
	if err != nil {
		if isFormatError(err) {
			rep.Reason = badHeader(err)
			return rep, nil
		}
		return rep, err
	}
	defer r.Close()

	h := r.Header()
	rep.FileID = h.FileID
	rep.StartSeq = h.StartSeq()
	rep.StartHash = chain.Genesis
	if h.Chain != nil && h.Chain.PrevHash != "" {
		rep.StartHash = h.Chain.PrevHash
	}

	expectedSeq := rep.StartSeq
	prevHash := rep.StartHash
	fail := func(seq uint64, reason string) (Report, error) {
		rep.OK = false
		rep.Seq = seq
		rep.Reason = reason
		rep.LastHash = prevHash
		return rep, nil
	}

	for {
		fr, err := r.Next()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			rep.OK = true
			rep.Seq = expectedSeq - 1
			rep.LastHash = prevHash
			return rep, nil
		case errors.Is(err, vlog.ErrTruncatedFrame):
			if tolerateTruncated {
				rep.OK = true
				rep.Truncated = true
				rep.Seq = expectedSeq - 1
				rep.LastHash = prevHash
				return rep, nil
			}
			return fail(expectedSeq, ReasonTruncatedFrame)
		case errors.Is(err, vlog.ErrInvalidFrameLength):
			return fail(expectedSeq, ReasonInvalidFrameLength)
		default:
			return rep, err
		}

		if fr.Seq != expectedSeq {
			return fail(fr.Seq, seqNotContiguous(expectedSeq))
		}
		if fr.Type != vlog.TypeLog {
			return fail(fr.Seq, unsupportedType(fr.Type))
		}

		plain, err := vlog.Decrypt(c, h, fr)
		if err != nil {
			return fail(fr.Seq, ReasonDecryptFailed)
		}
		entry, err := chain.Parse(plain)
		if err != nil {
			return fail(fr.Seq, ReasonJSONParseFailed)
		}
		if entry.Seq != fr.Seq {
			return fail(fr.Seq, jsonSeqMismatch(entry.Seq))
		}
		if reason, ok := chain.VerifyEntry(entry, prevHash, keys); !ok {
			return fail(fr.Seq, reason)
		}

		if visit != nil {
			if err := visit(entry); err != nil {
				return rep, err
			}
		}
		rep.Entries++
		prevHash = entry.EntryHash
		expectedSeq++
	}
}

func isFormatError(err error) bool {
	return errors.Is(err, vlog.ErrBadMagic) ||
		errors.Is(err, vlog.ErrUnsupportedVersion) ||
		errors.Is(err, vlog.ErrTruncatedHeader) ||
		errors.Is(err, vlog.ErrBadHeader)
}

// DirOptions controls VerifyDirectory.
type DirOptions struct {
	// ActiveFile is the name of the file still being written. It is
	// verified last and may end in a partial frame.
	ActiveFile string

	// StopOnFirstFailure stops after the first file that fails.
	StopOnFirstFailure bool

	// OnFile, if set, is called before each file is verified.
	OnFile func(path string)
}

// VerifyDirectory verifies every VeriLog file in dir in name order, which
// is rotation order, with the active file last.
//
// A file whose header anchors it to a non-genesis position must continue
// the chain of the file verified just before it. A genesis anchor starts a
// new stream. The first file listed is accepted at its recorded anchor.
func VerifyDirectory(dir string, key []byte, keys ecsig.KeyResolver, opts DirOptions) (DirectoryReport, error) {
	out := DirectoryReport{Dir: dir}

	files, err := vlog.ListLogFiles(dir, opts.ActiveFile)
	if err != nil {
		return out, err
	}

	var prev *Report
	for _, path := range files {
		if opts.OnFile != nil {
			opts.OnFile(path)
		}
		active := opts.ActiveFile != "" && filepath.Base(path) == opts.ActiveFile
		rep, err := VerifyFile(path, key, keys, active)
		if err != nil {
			return out, fmt.Errorf("verify %s: %w", path, err)
		}

		if rep.Reason == "" && prev != nil && prev.OK && !linksTo(rep, *prev) {
			rep.OK = false
			rep.Seq = rep.StartSeq
			rep.Reason = ReasonFileChainBroken
		}

		out.Files = append(out.Files, rep)
		if !rep.OK && opts.StopOnFirstFailure {
			break
		}
		prev = &out.Files[len(out.Files)-1]
	}
	return out, nil
}

// linksTo reports whether rep continues the chain ended by prev.
func linksTo(rep, prev Report) bool {
	if rep.StartSeq == 1 && rep.StartHash == chain.Genesis {
		return true
	}
	return rep.StartSeq == prev.Seq+1 && rep.StartHash == prev.LastHash
}
