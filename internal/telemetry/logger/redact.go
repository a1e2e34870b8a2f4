package logger

import (
	"log/slog"
	"strings"
)

// Keys whose values are key material. Matching is by substring on the
// lowercased attribute key.
var sensitiveKeyPatterns = []string{
	"dek",
	"key",
	"secret",
	"passphrase",
	"password",
	"private",
	"salt",
}

// Keys that contain a sensitive pattern but hold public identifiers.
var publicKeys = map[string]bool{
	"keyid":  true,
	"key_id": true,
	"pubkey": true,
}

const redactedValue = "***REDACTED***"

// redactSensitive masks string and byte values of key-material attributes
// and recurses into groups.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if !IsSensitiveKey(a.Key) {
		return a
	}
	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() == "" {
			return a
		}
		return slog.String(a.Key, redactedValue)
	case slog.KindAny:
		if b, ok := a.Value.Any().([]byte); ok && len(b) > 0 {
			return slog.String(a.Key, redactedValue)
		}
	}
	return a
}

// IsSensitiveKey reports whether key names key material.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if publicKeys[k] {
		return false
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(k, pattern) {
			return true
		}
	}
	return false
}

// MaskHex shortens a hex identifier to its first and last 6 characters.
// Used for entry hashes and key ids in human-facing messages.
func MaskHex(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:6] + "..." + s[len(s)-6:]
}
