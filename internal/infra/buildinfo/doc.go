// Package buildinfo holds version information set at link time:
//
//	go build -ldflags "-X github.com/erik-marten/VeriLog/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
