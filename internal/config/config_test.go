package config

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erik-marten/VeriLog/internal/auditlog"
	"github.com/erik-marten/VeriLog/internal/infra/confloader"
	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

var rawKey = bytes.Repeat([]byte{0xab}, 32)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify(Default()) = %v", err)
	}
	if cfg.Writer.ActiveFile != auditlog.DefaultActiveFile || cfg.Writer.QueueCapacity != auditlog.DefaultQueueCapacity {
		t.Errorf("writer defaults = %+v", cfg.Writer)
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Metrics.Enabled {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad backpressure", func(c *Config) { c.Writer.Backpressure = "spill" }, "writer.backpressure"},
		{"bad fault mode", func(c *Config) { c.Writer.FaultMode = "panic" }, "writer.fault_mode"},
		{"active file path", func(c *Config) { c.Writer.ActiveFile = "a/b.vlog" }, "writer.active_file"},
		{"two dek sources", func(c *Config) { c.Keys.DEK = "x"; c.Keys.DEKFile = "y" }, "only one"},
		{"passphrase without salt", func(c *Config) { c.Keys.Passphrase = "pw" }, "keys.salt"},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, "metrics.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := Verify(cfg)
			if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Verify() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"hex", hex.EncodeToString(rawKey), nil},
		{"hex upper", strings.ToUpper(hex.EncodeToString(rawKey)), nil},
		{"base64", base64.StdEncoding.EncodeToString(rawKey), nil},
		{"base64 raw url", base64.RawURLEncoding.EncodeToString(rawKey), nil},
		{"padded whitespace", "  " + hex.EncodeToString(rawKey) + "\n", nil},
		{"short hex", hex.EncodeToString(rawKey[:16]), ErrKeyLength},
		{"short base64", base64.StdEncoding.EncodeToString(rawKey[:31]), ErrKeyLength},
		{"garbage", "not a key!", ErrKeyEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseKey() = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || !bytes.Equal(key, rawKey) {
				t.Fatalf("ParseKey() = %x, %v", key, err)
			}
		})
	}
}

func TestDEKSources(t *testing.T) {
	dir := t.TempDir()
	rawFile := filepath.Join(dir, "dek.bin")
	textFile := filepath.Join(dir, "dek.txt")
	if err := os.WriteFile(rawFile, rawKey, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(textFile, []byte(hex.EncodeToString(rawKey)+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	salt := hex.EncodeToString(bytes.Repeat([]byte{1}, 16))

	for name, keys := range map[string]KeysSection{
		"raw file":  {DEKFile: rawFile},
		"text file": {DEKFile: textFile},
		"inline":    {DEK: base64.StdEncoding.EncodeToString(rawKey)},
	} {
		key, err := keys.LoadDEK()
		if err != nil || !bytes.Equal(key, rawKey) {
			t.Errorf("%s: LoadDEK() = %x, %v", name, key, err)
		}
	}

	pw := KeysSection{Passphrase: "correct horse", Salt: salt}
	k1, err := pw.LoadDEK()
	if err != nil || len(k1) != 32 {
		t.Fatalf("passphrase LoadDEK() = %x, %v", k1, err)
	}
	k2, _ := pw.LoadDEK()
	if !bytes.Equal(k1, k2) {
		t.Error("passphrase derivation is not deterministic")
	}
	if _, err := (&KeysSection{Passphrase: "pw", Salt: "0102"}).LoadDEK(); err == nil {
		t.Error("short salt accepted")
	}

	master := KeysSection{MasterKey: hex.EncodeToString(rawKey), HKDFInfo: "a"}
	ka, err := master.LoadDEK()
	if err != nil || len(ka) != 32 {
		t.Fatalf("master LoadDEK() = %x, %v", ka, err)
	}
	master.HKDFInfo = "b"
	kb, _ := master.LoadDEK()
	if bytes.Equal(ka, kb) || bytes.Equal(ka, rawKey) {
		t.Error("HKDF info does not separate derived keys")
	}

	if _, err := (&KeysSection{}).LoadDEK(); !errors.Is(err, ErrNoDEK) {
		t.Errorf("empty LoadDEK() = %v, want ErrNoDEK", err)
	}
}

func writeSigningKey(t *testing.T, dir string) (string, *ecdsa.PrivateKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	pemBytes, err := ecsig.MarshalPrivateKeyPEM(priv)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "signing.pem")
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		t.Fatal(err)
	}
	return path, priv
}

func TestWriterConfig(t *testing.T) {
	dir := t.TempDir()
	keyPath, priv := writeSigningKey(t, dir)

	cfg := Default()
	cfg.Writer.Dir = filepath.Join(dir, "logs")
	cfg.Writer.QueueCapacity = 8
	cfg.Keys.DEK = hex.EncodeToString(rawKey)
	cfg.Keys.SigningKeyFile = keyPath

	wc, err := cfg.WriterConfig(logger.Discard())
	if err != nil {
		t.Fatalf("WriterConfig: %v", err)
	}
	if err := wc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want, _ := ecsig.KeyID(&priv.PublicKey)
	if wc.Signer.KeyID() != want {
		t.Errorf("signer key id = %s, want %s", wc.Signer.KeyID(), want)
	}
	if wc.QueueCapacity != 8 || !bytes.Equal(wc.Key, rawKey) {
		t.Errorf("writer config = %+v", wc)
	}

	cfg.Keys.SigningKeyFile = ""
	if _, err := cfg.WriterConfig(logger.Discard()); !errors.Is(err, ErrNoSigningKey) {
		t.Errorf("WriterConfig without signing key = %v", err)
	}
}

func TestLoadFromYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verilog.yaml")
	content := `
writer:
  dir: /var/log/verilog
  backpressure: drop
  flush_interval: 250ms
  rotate_bytes: 2097152
keys:
  public_key_files: [a.pem, b.pem]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VERILOG_WRITER_ACTOR", "billing")

	cfg := Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Writer.Dir != "/var/log/verilog" || cfg.Writer.Backpressure != "drop" {
		t.Errorf("writer = %+v", cfg.Writer)
	}
	if cfg.Writer.FlushInterval.Milliseconds() != 250 || cfg.Writer.RotateBytes != 2<<20 {
		t.Errorf("durations/sizes = %v %d", cfg.Writer.FlushInterval, cfg.Writer.RotateBytes)
	}
	if cfg.Writer.Actor != "billing" {
		t.Errorf("actor = %q, want env value", cfg.Writer.Actor)
	}
	if len(cfg.Keys.PublicKeyFiles) != 2 {
		t.Errorf("public keys = %v", cfg.Keys.PublicKeyFiles)
	}
	if cfg.Writer.QueueCapacity != auditlog.DefaultQueueCapacity {
		t.Errorf("default queue capacity lost: %d", cfg.Writer.QueueCapacity)
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Keys.DEK = hex.EncodeToString(rawKey)
	cfg.Keys.Passphrase = "pw"

	s := Sanitize(cfg)
	if s.Keys.DEK == cfg.Keys.DEK || strings.Contains(s.Keys.DEK, "abababab") {
		t.Errorf("DEK not masked: %q", s.Keys.DEK)
	}
	if s.Keys.Passphrase != "****" {
		t.Errorf("passphrase = %q", s.Keys.Passphrase)
	}
	if cfg.Keys.DEK != hex.EncodeToString(rawKey) {
		t.Error("Sanitize modified the original")
	}
}
