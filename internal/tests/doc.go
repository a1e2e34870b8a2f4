// Package tests holds end-to-end tests that drive the writer and the
// verifier together through real files.
package tests
