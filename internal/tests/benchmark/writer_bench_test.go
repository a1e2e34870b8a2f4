package benchmark

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/erik-marten/VeriLog/internal/auditlog"
	"github.com/erik-marten/VeriLog/internal/verify"
	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

// BenchmarkLoggerLog benchmarks Log through the queue to the file.
func BenchmarkLoggerLog(b *testing.B) {
	for _, fsync := range []bool{false, true} {
		b.Run(fmt.Sprintf("fsync_%v", fsync), func(b *testing.B) {
			cfg := writerConfig(b, b.TempDir(), newSigner(b))
			cfg.FsyncOnFlush = fsync
			l, err := auditlog.Open(cfg)
			if err != nil {
				b.Fatal(err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := l.Log(auditlog.LevelInfo, "login", sampleFields(i)); err != nil {
					b.Fatal(err)
				}
			}
			if err := l.Close(context.Background()); err != nil {
				b.Fatal(err)
			}
			b.StopTimer()

			if st := l.Stats(); st.Written != uint64(b.N) {
				b.Fatalf("written = %d, want %d", st.Written, b.N)
			}
		})
	}
}

// BenchmarkLoggerLogParallel benchmarks concurrent producers.
func BenchmarkLoggerLogParallel(b *testing.B) {
	cfg := writerConfig(b, b.TempDir(), newSigner(b))
	l, err := auditlog.Open(cfg)
	if err != nil {
		b.Fatal(err)
	}
	defer l.Close(context.Background())

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if err := l.Log(auditlog.LevelInfo, "login", sampleFields(i)); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}

// BenchmarkVerifyFile benchmarks full replay of chains of various lengths.
func BenchmarkVerifyFile(b *testing.B) {
	for _, n := range EntryCounts {
		b.Run(fmt.Sprintf("entries_%d", n), func(b *testing.B) {
			dir := b.TempDir()
			signer := newSigner(b)
			cfg := writerConfig(b, dir, signer)
			l, err := auditlog.Open(cfg)
			if err != nil {
				b.Fatal(err)
			}
			for i := 0; i < n; i++ {
				if err := l.Log(auditlog.LevelInfo, "login", sampleFields(i)); err != nil {
					b.Fatal(err)
				}
			}
			if err := l.Close(context.Background()); err != nil {
				b.Fatal(err)
			}

			keys, err := ecsig.NewMapResolver(signer.Public())
			if err != nil {
				b.Fatal(err)
			}
			path := filepath.Join(dir, auditlog.DefaultActiveFile)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				rep, err := verify.VerifyFile(path, benchKey, keys, false)
				if err != nil || !rep.OK {
					b.Fatalf("VerifyFile = %+v, %v", rep, err)
				}
			}
		})
	}
}
