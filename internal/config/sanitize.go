package config

import "strings"

// Sanitize returns a copy of cfg with key material masked, for logging.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Keys.PublicKeyFiles = append([]string(nil), cfg.Keys.PublicKeyFiles...)
	out.Keys.DEK = maskSecret(cfg.Keys.DEK)
	out.Keys.Passphrase = maskSecret(cfg.Keys.Passphrase)
	out.Keys.MasterKey = maskSecret(cfg.Keys.MasterKey)
	return &out
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
	}
}
