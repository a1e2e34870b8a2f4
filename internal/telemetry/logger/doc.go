// Package logger provides diagnostic logging for VeriLog.
//
// These are operational messages about the logger itself (file recovery,
// rotation, dropped events, CLI progress), not audit entries. Output is
// structured log/slog JSON or text.
//
//   - logger.go: Logger interface, construction and dynamic level
//   - context.go: context propagation and per-operation fields
//   - redact.go: masking of key material
package logger
