package chain

import (
	"encoding/base64"
	"encoding/hex"

	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

// Verification failure reasons.
const (
	ReasonPrevHashMismatch  = "prevHash mismatch"
	ReasonEntryHashMismatch = "entryHash mismatch"
	ReasonUnknownKeyID      = "unknown keyId: "
	ReasonSignatureInvalid  = "signature invalid"
)

// VerifyEntry checks e against the expected previous hash and the known
// keys. Checks run in order prevHash, entryHash, key lookup, signature,
// and the first failure is returned as a reason string. It returns
// ok=true when every check passes.
func VerifyEntry(e *Entry, expectedPrevHash string, keys ecsig.KeyResolver) (reason string, ok bool) {
	if e.PrevHash != expectedPrevHash {
		return ReasonPrevHashMismatch, false
	}

	sum, err := e.hashBytes()
	if err != nil || hex.EncodeToString(sum) != e.EntryHash {
		return ReasonEntryHashMismatch, false
	}

	v, found := keys.Resolve(e.KeyID)
	if !found {
		return ReasonUnknownKeyID + e.KeyID, false
	}

	sig, err := base64.StdEncoding.DecodeString(e.Sig)
	if err != nil || !v.Verify(sum, sig) {
		return ReasonSignatureInvalid, false
	}
	return "", true
}
