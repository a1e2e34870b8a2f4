// Package verify replays VeriLog files and checks every frame and entry.
//
// Verification failures are reported as values: a Report carries the
// first failing sequence number and a machine-readable reason. Only I/O
// problems unrelated to file content are returned as errors.
package verify
