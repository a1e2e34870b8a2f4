// Package config defines the configuration of the VeriLog agent and CLI.
//
//   - spec.go: Config struct with koanf tags
//   - default.go: default values
//   - verify.go: validation
//   - keys.go: data-encryption key sources and signer loading
//   - sanitize.go: masking secrets before the config is logged
//
// Configuration is loaded by internal/infra/confloader from a YAML file,
// VERILOG_* environment variables and flags.
package config
