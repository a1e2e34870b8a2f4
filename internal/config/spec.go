package config

import "time"

// Config is the root configuration.
type Config struct {
	Log     LogSection     `koanf:"log" yaml:"log"`
	Writer  WriterSection  `koanf:"writer" yaml:"writer"`
	Keys    KeysSection    `koanf:"keys" yaml:"keys"`
	Metrics MetricsSection `koanf:"metrics" yaml:"metrics"`
}

// LogSection configures diagnostic logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// WriterSection configures the audit writer.
type WriterSection struct {
	Dir        string `koanf:"dir" yaml:"dir"`
	FilePrefix string `koanf:"file_prefix" yaml:"file_prefix"`
	ActiveFile string `koanf:"active_file" yaml:"active_file"`
	AADPrefix  string `koanf:"aad_prefix" yaml:"aad_prefix"`
	Actor      string `koanf:"actor" yaml:"actor"`

	QueueCapacity                 int           `koanf:"queue_capacity" yaml:"queue_capacity"`
	Backpressure                  string        `koanf:"backpressure" yaml:"backpressure"`
	OfferTimeout                  time.Duration `koanf:"offer_timeout" yaml:"offer_timeout"`
	PreferReliabilityForWarnError bool          `koanf:"prefer_reliability_for_warn_error" yaml:"prefer_reliability_for_warn_error"`
	FaultMode                     string        `koanf:"fault_mode" yaml:"fault_mode"`

	RotateBytes     int64 `koanf:"rotate_bytes" yaml:"rotate_bytes"`
	RotateOnStartup bool  `koanf:"rotate_on_startup" yaml:"rotate_on_startup"`

	FlushEveryN   int           `koanf:"flush_every_n" yaml:"flush_every_n"`
	FlushInterval time.Duration `koanf:"flush_interval" yaml:"flush_interval"`
	FsyncOnFlush  bool          `koanf:"fsync_on_flush" yaml:"fsync_on_flush"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// KeysSection selects key material.
//
// Exactly one DEK source must be set: DEK (hex or base64), DEKFile,
// Passphrase with Salt (Argon2id), or MasterKey with HKDFInfo (HKDF-SHA256).
type KeysSection struct {
	DEK        string `koanf:"dek" yaml:"dek"`
	DEKFile    string `koanf:"dek_file" yaml:"dek_file"`
	Passphrase string `koanf:"passphrase" yaml:"passphrase"`
	Salt       string `koanf:"salt" yaml:"salt"`
	MasterKey  string `koanf:"master_key" yaml:"master_key"`
	HKDFInfo   string `koanf:"hkdf_info" yaml:"hkdf_info"`

	// SigningKeyFile is a PEM P-256 private key used by the writer.
	SigningKeyFile string `koanf:"signing_key_file" yaml:"signing_key_file"`

	// PublicKeyFiles are PEM public keys trusted by the verifier.
	PublicKeyFiles []string `koanf:"public_key_files" yaml:"public_key_files"`
}

// MetricsSection configures the Prometheus endpoint of the agent.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
	Path    string `koanf:"path" yaml:"path"`
}
