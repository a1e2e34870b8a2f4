package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erik-marten/VeriLog/internal/auditlog"
)

// ErrInvalid is wrapped by every Verify failure.
var ErrInvalid = errors.New("config: invalid")

// Verify checks the parts of cfg that do not need key material. The writer
// settings are checked again, with the keys, by auditlog.Config.Validate.
func Verify(cfg *Config) error {
	var errs []error
	if err := verifyLog(&cfg.Log); err != nil {
		errs = append(errs, err)
	}
	if err := verifyWriter(&cfg.Writer); err != nil {
		errs = append(errs, err)
	}
	if err := verifyKeys(&cfg.Keys); err != nil {
		errs = append(errs, err)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}

func verifyWriter(cfg *WriterSection) error {
	switch auditlog.BackpressureMode(cfg.Backpressure) {
	case auditlog.BackpressureBlock, auditlog.BackpressureDrop:
	default:
		return fmt.Errorf("writer.backpressure %q is not one of block, drop", cfg.Backpressure)
	}
	switch auditlog.FaultMode(cfg.FaultMode) {
	case auditlog.FaultFailFast, auditlog.FaultDropOnFault:
	default:
		return fmt.Errorf("writer.fault_mode %q is not one of fail_fast, drop_on_fault", cfg.FaultMode)
	}
	if strings.ContainsAny(cfg.ActiveFile, `/\`) {
		return fmt.Errorf("writer.active_file %q must be a file name", cfg.ActiveFile)
	}
	return nil
}

func verifyKeys(cfg *KeysSection) error {
	if n := cfg.dekSources(); n > 1 {
		return errors.New("keys: set only one of dek, dek_file, passphrase, master_key")
	}
	if cfg.Passphrase != "" && cfg.Salt == "" {
		return errors.New("keys.salt is required with keys.passphrase")
	}
	return nil
}
