package verify

import (
	"fmt"
	"strings"
)

// Reasons reported for frame and file level failures. Entry level reasons
// come from the chain package.
const (
	ReasonSeqNotContiguous   = "frame seq not contiguous"
	ReasonUnsupportedType    = "unsupported frame type"
	ReasonDecryptFailed      = "decrypt/auth failed"
	ReasonJSONParseFailed    = "json parse failed"
	ReasonJSONSeqMismatch    = "json seq mismatch"
	ReasonTruncatedFrame     = "truncated frame"
	ReasonInvalidFrameLength = "invalid frame length"
	ReasonBadHeader          = "bad header"
	ReasonFileChainBroken    = "file chain broken"
)

func seqNotContiguous(expected uint64) string {
	return fmt.Sprintf("%s (expected %d)", ReasonSeqNotContiguous, expected)
}

func unsupportedType(typ byte) string {
	return fmt.Sprintf("%s: %d", ReasonUnsupportedType, typ)
}

func jsonSeqMismatch(seq uint64) string {
	return fmt.Sprintf("%s (json=%d)", ReasonJSONSeqMismatch, seq)
}

func badHeader(err error) string {
	return ReasonBadHeader + ": " + err.Error()
}

// Report is the outcome of verifying one file.
type Report struct {
	Path string

	// OK is true when every frame verified.
	OK bool

	// Seq is the last verified sequence number on success and the failing
	// sequence number otherwise. It is zero for an empty chain.
	Seq uint64

	// Reason is empty on success.
	Reason string

	// Entries counts verified entries.
	Entries int

	// Truncated is set when a trailing partial frame was tolerated.
	Truncated bool

	// StartSeq and StartHash are the chain position the file links to.
	StartSeq  uint64
	StartHash string

	// LastHash is the entryHash of the last verified entry, or StartHash
	// when no entry verified.
	LastHash string

	FileID string
}

// Failure classifies a failed Report.
type Failure int

const (
	FailureNone Failure = iota
	// FailureFormat covers damaged framing: bad headers, truncated or
	// oversized frames and unknown frame types.
	FailureFormat
	// FailureIntegrity covers authentication and chain failures.
	FailureIntegrity
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureFormat:
		return "format"
	case FailureIntegrity:
		return "integrity"
	default:
		return fmt.Sprintf("Failure(%d)", int(f))
	}
}

// Failure classifies r.
func (r Report) Failure() Failure {
	if r.OK {
		return FailureNone
	}
	return Classify(r.Reason)
}

// Classify maps a reason string to its failure class. Anything that is not
// a framing problem counts as an integrity failure.
func Classify(reason string) Failure {
	switch {
	case reason == "":
		return FailureNone
	case strings.HasPrefix(reason, ReasonBadHeader),
		strings.HasPrefix(reason, ReasonUnsupportedType),
		reason == ReasonTruncatedFrame,
		strings.HasPrefix(reason, ReasonInvalidFrameLength),
		reason == ReasonJSONParseFailed:
		return FailureFormat
	default:
		return FailureIntegrity
	}
}

// String formats r for display.
func (r Report) String() string {
	if r.OK {
		s := fmt.Sprintf("OK %s lastSeq=%d entries=%d", r.Path, r.Seq, r.Entries)
		if r.Truncated {
			s += " (partial tail ignored)"
		}
		return s
	}
	return fmt.Sprintf("FAIL %s seq=%d reason=%s", r.Path, r.Seq, r.Reason)
}

// DirectoryReport is the outcome of verifying a directory.
type DirectoryReport struct {
	Dir   string
	Files []Report
}

// OK reports whether every file verified. An empty directory is OK.
func (d DirectoryReport) OK() bool {
	for _, f := range d.Files {
		if !f.OK {
			return false
		}
	}
	return true
}

// Failed returns the reports of files that did not verify.
func (d DirectoryReport) Failed() []Report {
	var out []Report
	for _, f := range d.Files {
		if !f.OK {
			out = append(out, f)
		}
	}
	return out
}
