package benchmark

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/erik-marten/VeriLog/internal/auditlog"
	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

// EntryCounts are the chain lengths used by replay benchmarks.
var EntryCounts = []int{100, 1000, 10000}

var benchKey = bytes.Repeat([]byte{0x42}, 32)

func newSigner(b *testing.B) *ecsig.P256Signer {
	b.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		b.Fatalf("GenerateKey: %v", err)
	}
	s, err := ecsig.NewP256Signer(priv)
	if err != nil {
		b.Fatalf("NewP256Signer: %v", err)
	}
	return s
}

func writerConfig(b *testing.B, dir string, signer ecsig.Signer) auditlog.Config {
	b.Helper()
	cfg := auditlog.DefaultConfig(dir)
	cfg.Key = bytes.Clone(benchKey)
	cfg.Signer = signer
	cfg.Actor = "bench"
	cfg.Logger = logger.Discard()
	return cfg
}

// sampleFields is a typical audit event payload.
func sampleFields(i int) map[string]any {
	return map[string]any{
		"user":   "alice",
		"action": "login",
		"ip":     "192.168.1.1",
		"n":      i,
	}
}
