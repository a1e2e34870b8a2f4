package auditlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erik-marten/VeriLog/internal/core/chain"
	"github.com/erik-marten/VeriLog/internal/storage/vlog"
	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
	"github.com/erik-marten/VeriLog/pkg/crypto/aead"
)

// pollInterval bounds how long the writer waits before re-checking the
// flush and rotation policies.
const pollInterval = 50 * time.Millisecond

// counters are shared between the writer and Stats readers.
type counters struct {
	written     atomic.Uint64
	dropped     atomic.Uint64
	rejected    atomic.Uint64
	rotations   atomic.Uint64
	activeBytes atomic.Int64
	nextSeq     atomic.Uint64
}

// writer owns the active file and chain state. Only its goroutine touches
// them, except for the best-effort close after a shutdown timeout, which
// goes through mu. Once abandoned, the file stays closed and every event
// still queued is counted as dropped.
type writer struct {
	cfg       *Config
	cipher    *aead.Cipher
	builder   *chain.Builder
	stats     *counters
	faulted   *atomic.Bool
	abandoned atomic.Bool
	log       logger.Logger

	mu         sync.Mutex
	file       *vlog.File
	state      *chain.State
	sinceFlush int
	lastFlush  time.Time
	err        error
}

func newWriter(cfg *Config, cipher *aead.Cipher, stats *counters, faulted *atomic.Bool) (*writer, error) {
	builder, err := chain.NewBuilder(cfg.Signer, cfg.Actor)
	if err != nil {
		return nil, err
	}
	w := &writer{
		cfg:     cfg,
		cipher:  cipher,
		builder: builder,
		stats:   stats,
		faulted: faulted,
		log:     cfg.Logger.With("component", "auditlog.writer"),
	}
	if err := os.MkdirAll(cfg.Dir, vlog.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("auditlog: create dir: %w", err)
	}
	if err := w.openActive(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *writer) activePath() string {
	return filepath.Join(w.cfg.Dir, w.cfg.ActiveFile)
}

func (w *writer) fileOptions(anchor *vlog.ChainAnchor) vlog.Options {
	return vlog.Options{
		Cipher:    w.cipher,
		AADPrefix: w.cfg.AADPrefix,
		Anchor:    anchor,
		Logger:    w.cfg.Logger,
		Now:       w.cfg.Now,
	}
}

// openActive resumes the chain from an existing active file and either
// keeps appending to it or rotates it aside first.
func (w *writer) openActive() error {
	path := w.activePath()

	var (
		file *vlog.File
		pos  *vlog.ChainAnchor
	)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		file, err = vlog.OpenFile(path, w.fileOptions(nil))
		if err != nil {
			return fmt.Errorf("auditlog: open active file: %w", err)
		}
		if pos, err = tailPosition(file); err != nil {
			file.Close()
			return err
		}

		if w.cfg.RotateOnStartup {
			if err := w.retire(file); err != nil {
				return err
			}
			file = nil
		}
	}

	if file == nil {
		var err error
		file, err = vlog.OpenFile(path, w.fileOptions(pos))
		if err != nil {
			return fmt.Errorf("auditlog: open active file: %w", err)
		}
	}

	if pos == nil {
		w.state = chain.NewState()
	} else {
		w.state = chain.Resume(pos.StartSeq, pos.PrevHash)
	}
	w.file = file
	w.sinceFlush = 0
	w.lastFlush = w.cfg.Now()
	w.publish()

	w.log.Info("active file opened",
		"path", path,
		"next_seq", w.state.NextSeq(),
		"file_id", file.Header().FileID)
	return nil
}

// tailPosition returns where the chain stands at the end of f.
func tailPosition(f *vlog.File) (*vlog.ChainAnchor, error) {
	last, err := f.LastFrame()
	if err != nil {
		return nil, fmt.Errorf("auditlog: read last frame: %w", err)
	}
	if last == nil {
		h := f.Header()
		if h.Chain == nil {
			return nil, nil
		}
		return &vlog.ChainAnchor{StartSeq: h.StartSeq(), PrevHash: h.Chain.PrevHash}, nil
	}

	plain, err := f.Decrypt(last)
	if err != nil {
		return nil, fmt.Errorf("auditlog: resume chain from %s: %w", f.Path(), err)
	}
	entry, err := chain.Parse(plain)
	if err != nil {
		return nil, fmt.Errorf("auditlog: resume chain from %s: %w", f.Path(), err)
	}
	return &vlog.ChainAnchor{StartSeq: f.NextSeq(), PrevHash: entry.EntryHash}, nil
}

// retire syncs, closes and renames f aside.
func (w *writer) retire(f *vlog.File) error {
	if err := f.Flush(true); err != nil {
		f.Close()
		return fmt.Errorf("auditlog: rotate: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("auditlog: rotate: %w", err)
	}

	rotated := filepath.Join(w.cfg.Dir, vlog.RotatedName(w.cfg.FilePrefix, w.cfg.Now()))
	if err := os.Rename(f.Path(), rotated); err != nil {
		return fmt.Errorf("auditlog: rotate: %w", err)
	}
	w.log.Info("rotated active file", "to", filepath.Base(rotated))
	return nil
}

// run is the consumer loop. done is closed when the writer has finished.
func (w *writer) run(queue <-chan event, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		var err error
		select {
		case ev := <-queue:
			err = w.writeOne(ev)
		case <-ticker.C:
		case <-stop:
			w.shutdown(queue)
			return
		}

		if err == nil {
			err = w.maybeFlush()
		}
		if err == nil {
			err = w.maybeRotate()
		}
		if err != nil {
			w.fault(err, queue)
			return
		}
	}
}

func (w *writer) writeOne(ev event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released() {
		w.stats.dropped.Add(1)
		return nil
	}
	payload := map[string]any{
		"msg":    ev.msg,
		"fields": ev.fields,
	}
	entry, err := w.builder.Build(w.state, ev.level.String(), payload, ev.ts)
	if err != nil {
		return fmt.Errorf("auditlog: build entry: %w", err)
	}
	data, err := entry.Encode()
	if err != nil {
		return fmt.Errorf("auditlog: encode entry %d: %w", entry.Seq, err)
	}
	if err := w.file.Append(vlog.TypeLog, entry.Seq, data); err != nil {
		return fmt.Errorf("auditlog: append entry %d: %w", entry.Seq, err)
	}

	w.sinceFlush++
	w.stats.written.Add(1)
	w.publish()
	return nil
}

func (w *writer) maybeFlush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released() {
		return nil
	}
	now := w.cfg.Now()
	if w.sinceFlush >= w.cfg.FlushEveryN ||
		(w.sinceFlush > 0 && now.Sub(w.lastFlush) >= w.cfg.FlushInterval) {
		if err := w.file.Flush(w.cfg.FsyncOnFlush); err != nil {
			return err
		}
		w.sinceFlush = 0
		w.lastFlush = now
	}
	return nil
}

func (w *writer) maybeRotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released() || w.file.Size() < w.cfg.RotateBytes {
		return nil
	}
	if err := w.retire(w.file); err != nil {
		return err
	}
	anchor := &vlog.ChainAnchor{StartSeq: w.state.NextSeq(), PrevHash: w.state.PrevHash()}
	file, err := vlog.OpenFile(w.activePath(), w.fileOptions(anchor))
	if err != nil {
		return fmt.Errorf("auditlog: open active file: %w", err)
	}
	w.file = file
	w.sinceFlush = 0
	w.lastFlush = w.cfg.Now()
	w.stats.rotations.Add(1)
	w.publish()
	return nil
}

// shutdown drains queued events, syncs and closes the active file.
func (w *writer) shutdown(queue <-chan event) {
drain:
	for {
		select {
		case ev := <-queue:
			if err := w.writeOne(ev); err != nil {
				w.fault(err, queue)
				return
			}
		default:
			break drain
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = closeFile(w.file)
	w.file = nil
}

// fault records a writer failure, closes the file best-effort and counts
// anything still queued as dropped.
func (w *writer) fault(err error, queue <-chan event) {
	w.faulted.Store(true)
	w.log.Error("audit writer faulted", "error", err)

	w.mu.Lock()
	w.err = err
	if w.file != nil {
		_ = closeFile(w.file)
		w.file = nil
	}
	w.mu.Unlock()

	for {
		select {
		case <-queue:
			w.stats.dropped.Add(1)
		default:
			return
		}
	}
}

// abandon is the best-effort close used when Close times out. If the
// writer goroutine holds the file, it closes it itself on its next step.
func (w *writer) abandon() {
	w.abandoned.Store(true)
	if !w.mu.TryLock() {
		return
	}
	defer w.mu.Unlock()
	if w.file != nil {
		_ = closeFile(w.file)
		w.file = nil
	}
}

// released reports whether the active file is gone, closing it first if
// the writer was abandoned while it held mu. Callers hold mu.
func (w *writer) released() bool {
	if w.abandoned.Load() && w.file != nil {
		_ = closeFile(w.file)
		w.file = nil
	}
	return w.file == nil
}

func (w *writer) closeErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// publish copies writer-owned state into the shared counters.
func (w *writer) publish() {
	if w.file != nil {
		w.stats.activeBytes.Store(w.file.Size())
	}
	w.stats.nextSeq.Store(w.state.NextSeq())
}

func closeFile(f *vlog.File) error {
	if f == nil {
		return nil
	}
	return errors.Join(f.Flush(true), f.Close())
}
