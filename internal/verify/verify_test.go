package verify

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/erik-marten/VeriLog/internal/core/chain"
	"github.com/erik-marten/VeriLog/internal/storage/vlog"
	"github.com/erik-marten/VeriLog/pkg/crypto/aead"
	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

var testKey = bytes.Repeat([]byte{0x5a}, aead.KeySize)

type fixture struct {
	t       *testing.T
	signer  *ecsig.P256Signer
	builder *chain.Builder
	keys    ecsig.MapResolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signer, err := ecsig.NewP256Signer(priv)
	if err != nil {
		t.Fatalf("NewP256Signer: %v", err)
	}
	builder, err := chain.NewBuilder(signer, "test")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	keys, err := ecsig.NewMapResolver(signer.Public())
	if err != nil {
		t.Fatalf("NewMapResolver: %v", err)
	}
	return &fixture{t: t, signer: signer, builder: builder, keys: keys}
}

func (fx *fixture) open(path string, anchor *vlog.ChainAnchor) *vlog.File {
	fx.t.Helper()
	c, err := aead.New(testKey)
	if err != nil {
		fx.t.Fatalf("aead.New: %v", err)
	}
	f, err := vlog.OpenFile(path, vlog.Options{Cipher: c, AADPrefix: vlog.DefaultAADPrefix, Anchor: anchor})
	if err != nil {
		fx.t.Fatalf("OpenFile: %v", err)
	}
	return f
}

func (fx *fixture) build(st *chain.State, msg string) *chain.Entry {
	fx.t.Helper()
	e, err := fx.builder.Build(st, "INFO", map[string]any{"msg": msg}, time.Now())
	if err != nil {
		fx.t.Fatalf("Build: %v", err)
	}
	return e
}

func (fx *fixture) append(f *vlog.File, e *chain.Entry) {
	fx.t.Helper()
	fx.appendAs(f, e.Seq, e)
}

func (fx *fixture) appendAs(f *vlog.File, frameSeq uint64, e *chain.Entry) {
	fx.t.Helper()
	data, err := e.Encode()
	if err != nil {
		fx.t.Fatalf("Encode: %v", err)
	}
	if err := f.Append(vlog.TypeLog, frameSeq, data); err != nil {
		fx.t.Fatalf("Append: %v", err)
	}
}

// writeChain writes n valid entries continuing st and closes the file.
func (fx *fixture) writeChain(path string, st *chain.State, n int) {
	fx.t.Helper()
	var anchor *vlog.ChainAnchor
	if st.NextSeq() != 1 || st.PrevHash() != chain.Genesis {
		anchor = &vlog.ChainAnchor{StartSeq: st.NextSeq(), PrevHash: st.PrevHash()}
	}
	f := fx.open(path, anchor)
	for i := 0; i < n; i++ {
		fx.append(f, fx.build(st, "event"))
	}
	closeFile(fx.t, f)
}

func closeFile(t *testing.T, f *vlog.File) {
	t.Helper()
	if err := f.Flush(true); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestVerifyFile_EndToEnd(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "current.vlog")
	fx.writeChain(path, chain.NewState(), 2)

	rep, err := VerifyFile(path, testKey, fx.keys, false)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if !rep.OK || rep.Seq != 2 || rep.Reason != "" || rep.Entries != 2 {
		t.Fatalf("report = %+v, want ok lastSeq=2", rep)
	}
	if rep.Failure() != FailureNone {
		t.Errorf("Failure() = %v", rep.Failure())
	}
}

func TestVerifyFile_EmptyChain(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "current.vlog")
	fx.writeChain(path, chain.NewState(), 0)

	rep, err := VerifyFile(path, testKey, fx.keys, false)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if !rep.OK || rep.Seq != 0 || rep.LastHash != chain.Genesis {
		t.Errorf("report = %+v", rep)
	}
}

func TestVerifyFile_CiphertextTamper(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "current.vlog")
	fx.writeChain(path, chain.NewState(), 2)

	r, err := vlog.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	fr, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	r.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[fr.Offset+vlog.LenPrefixSize+vlog.FrameHeaderSize] ^= 0x01
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	rep, err := VerifyFile(path, testKey, fx.keys, false)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if rep.OK || rep.Seq != 1 || rep.Reason != ReasonDecryptFailed {
		t.Fatalf("report = %+v, want decrypt failure at seq 1", rep)
	}
	if rep.Failure() != FailureIntegrity {
		t.Errorf("Failure() = %v, want integrity", rep.Failure())
	}
}

func TestVerifyFile_WrongPrevHash(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "current.vlog")
	f := fx.open(path, nil)

	st := chain.NewState()
	fx.append(f, fx.build(st, "one"))
	forged := chain.Resume(2, strings.Repeat("ab", 32))
	fx.append(f, fx.build(forged, "two"))
	closeFile(t, f)

	rep, err := VerifyFile(path, testKey, fx.keys, false)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if rep.OK || rep.Seq != 2 || rep.Reason != chain.ReasonPrevHashMismatch {
		t.Fatalf("report = %+v, want prevHash mismatch at seq 2", rep)
	}
}

func TestVerifyFile_SignatureBitFlip(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "current.vlog")
	f := fx.open(path, nil)

	e := fx.build(chain.NewState(), "one")
	sig, err := base64.StdEncoding.DecodeString(e.Sig)
	if err != nil {
		t.Fatal(err)
	}
	sig[10] ^= 0x01
	e.Sig = base64.StdEncoding.EncodeToString(sig)
	fx.append(f, e)
	closeFile(t, f)

	rep, err := VerifyFile(path, testKey, fx.keys, false)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if rep.OK || rep.Seq != 1 || rep.Reason != chain.ReasonSignatureInvalid {
		t.Fatalf("report = %+v, want signature invalid at seq 1", rep)
	}
}

func TestVerifyFile_SeqGap(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "current.vlog")
	f := fx.open(path, nil)

	st := chain.NewState()
	fx.append(f, fx.build(st, "one"))
	fx.build(st, "skipped")
	fx.append(f, fx.build(st, "three"))
	closeFile(t, f)

	rep, err := VerifyFile(path, testKey, fx.keys, false)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if rep.OK || rep.Seq != 3 || !strings.Contains(rep.Reason, "not contiguous") {
		t.Fatalf("report = %+v, want not contiguous at seq 3", rep)
	}
	if rep.Reason != "frame seq not contiguous (expected 2)" {
		t.Errorf("reason = %q", rep.Reason)
	}
}

func TestVerifyFile_JSONSeqMismatch(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "current.vlog")
	f := fx.open(path, nil)

	st := chain.NewState()
	fx.append(f, fx.build(st, "one"))
	fx.build(st, "two")
	fx.appendAs(f, 2, fx.build(st, "three"))
	closeFile(t, f)

	rep, err := VerifyFile(path, testKey, fx.keys, false)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if rep.OK || rep.Seq != 2 || rep.Reason != "json seq mismatch (json=3)" {
		t.Fatalf("report = %+v", rep)
	}
}

func TestVerifyFile_UnknownKey(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "current.vlog")
	fx.writeChain(path, chain.NewState(), 1)

	other := newFixture(t)
	rep, err := VerifyFile(path, testKey, other.keys, false)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if rep.OK || !strings.HasPrefix(rep.Reason, chain.ReasonUnknownKeyID) {
		t.Fatalf("report = %+v", rep)
	}
	if !strings.HasSuffix(rep.Reason, fx.signer.KeyID()) {
		t.Errorf("reason %q does not name the key id", rep.Reason)
	}
}

func TestVerifyFile_WrongKey(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "current.vlog")
	fx.writeChain(path, chain.NewState(), 1)

	rep, err := VerifyFile(path, bytes.Repeat([]byte{1}, aead.KeySize), fx.keys, false)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if rep.OK || rep.Reason != ReasonDecryptFailed {
		t.Fatalf("report = %+v", rep)
	}
}

func TestVerifyFile_TruncatedTail(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "current.vlog")
	fx.writeChain(path, chain.NewState(), 3)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-20); err != nil {
		t.Fatal(err)
	}

	rep, err := VerifyFile(path, testKey, fx.keys, false)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if rep.OK || rep.Reason != ReasonTruncatedFrame || rep.Seq != 3 {
		t.Fatalf("strict report = %+v", rep)
	}
	if rep.Failure() != FailureFormat {
		t.Errorf("Failure() = %v, want format", rep.Failure())
	}

	rep, err = VerifyFile(path, testKey, fx.keys, true)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if !rep.OK || !rep.Truncated || rep.Seq != 2 {
		t.Fatalf("tolerant report = %+v", rep)
	}
}

func TestVerifyFile_BadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.vlog")
	if err := os.WriteFile(path, []byte("NOPE\x01\x01\x00\x02{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	rep, err := VerifyFile(path, testKey, ecsig.MapResolver{}, false)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if rep.OK || !strings.HasPrefix(rep.Reason, ReasonBadHeader+": ") {
		t.Fatalf("report = %+v", rep)
	}
}

func TestVerifyFile_MissingFile(t *testing.T) {
	_, err := VerifyFile(filepath.Join(t.TempDir(), "nope.vlog"), testKey, ecsig.MapResolver{}, false)
	if err == nil {
		t.Fatal("expected I/O error for a missing file")
	}
}

func TestReadEntries(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "current.vlog")
	fx.writeChain(path, chain.NewState(), 3)

	entries, rep, err := ReadEntries(path, testKey, fx.keys, false)
	if err != nil || !rep.OK {
		t.Fatalf("ReadEntries: %+v, %v", rep, err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	for i, e := range entries {
		if e.Seq != uint64(i+1) || e.Message() != "event" {
			t.Errorf("entry %d = seq %d msg %q", i, e.Seq, e.Message())
		}
	}
}

func TestVerifyDirectory_RotatedChain(t *testing.T) {
	fx := newFixture(t)
	dir := t.TempDir()
	st := chain.NewState()

	fx.writeChain(filepath.Join(dir, "app-2024-01-01T00-00-00.000Z-A.vlog"), st, 2)
	fx.writeChain(filepath.Join(dir, "app-2024-01-02T00-00-00.000Z-B.vlog"), st, 2)
	fx.writeChain(filepath.Join(dir, "current.vlog"), st, 1)

	rep, err := VerifyDirectory(dir, testKey, fx.keys, DirOptions{ActiveFile: "current.vlog"})
	if err != nil {
		t.Fatalf("VerifyDirectory: %v", err)
	}
	if !rep.OK() || len(rep.Files) != 3 {
		t.Fatalf("report = %+v", rep)
	}
	if last := rep.Files[2]; filepath.Base(last.Path) != "current.vlog" || last.Seq != 5 {
		t.Errorf("active report = %+v", last)
	}
}

func TestVerifyDirectory_MissingMiddleFile(t *testing.T) {
	fx := newFixture(t)
	dir := t.TempDir()
	st := chain.NewState()

	fx.writeChain(filepath.Join(dir, "app-1.vlog"), st, 2)
	fx.writeChain(filepath.Join(t.TempDir(), "deleted.vlog"), st, 2)
	fx.writeChain(filepath.Join(dir, "app-3.vlog"), st, 2)

	rep, err := VerifyDirectory(dir, testKey, fx.keys, DirOptions{})
	if err != nil {
		t.Fatalf("VerifyDirectory: %v", err)
	}
	failed := rep.Failed()
	if len(failed) != 1 || failed[0].Reason != ReasonFileChainBroken || failed[0].Seq != 5 {
		t.Fatalf("failed = %+v", failed)
	}
}

func TestVerifyDirectory_NewStreamAtGenesis(t *testing.T) {
	fx := newFixture(t)
	dir := t.TempDir()

	fx.writeChain(filepath.Join(dir, "app-1.vlog"), chain.NewState(), 2)
	fx.writeChain(filepath.Join(dir, "app-2.vlog"), chain.NewState(), 1)

	rep, err := VerifyDirectory(dir, testKey, fx.keys, DirOptions{})
	if err != nil {
		t.Fatalf("VerifyDirectory: %v", err)
	}
	if !rep.OK() {
		t.Fatalf("report = %+v", rep)
	}
}

func TestVerifyDirectory_StopOnFirstFailure(t *testing.T) {
	fx := newFixture(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "app-1.vlog")
	if err := os.WriteFile(bad, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	fx.writeChain(filepath.Join(dir, "app-2.vlog"), chain.NewState(), 1)

	rep, err := VerifyDirectory(dir, testKey, fx.keys, DirOptions{StopOnFirstFailure: true})
	if err != nil {
		t.Fatalf("VerifyDirectory: %v", err)
	}
	if len(rep.Files) != 1 || rep.OK() {
		t.Fatalf("report = %+v, want a single failing file", rep)
	}

	rep, err = VerifyDirectory(dir, testKey, fx.keys, DirOptions{})
	if err != nil {
		t.Fatalf("VerifyDirectory: %v", err)
	}
	if len(rep.Files) != 2 || !rep.Files[1].OK {
		t.Fatalf("report = %+v, want the second file verified", rep)
	}
}

func TestClassify(t *testing.T) {
	tests := map[string]Failure{
		"":                                      FailureNone,
		"bad header: vlog: bad magic":           FailureFormat,
		"unsupported frame type: 7":             FailureFormat,
		ReasonTruncatedFrame:                    FailureFormat,
		ReasonJSONParseFailed:                   FailureFormat,
		"frame seq not contiguous (expected 2)": FailureIntegrity,
		ReasonDecryptFailed:                     FailureIntegrity,
		chain.ReasonPrevHashMismatch:            FailureIntegrity,
		ReasonFileChainBroken:                   FailureIntegrity,
	}
	for reason, want := range tests {
		if got := Classify(reason); got != want {
			t.Errorf("Classify(%q) = %v, want %v", reason, got, want)
		}
	}
}
