package auditlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
	"github.com/erik-marten/VeriLog/pkg/canonjson"
	"github.com/erik-marten/VeriLog/pkg/crypto/aead"
)

var (
	// ErrFaulted is returned by Log under FaultFailFast once the writer has failed.
	ErrFaulted = errors.New("auditlog: writer is faulted")

	// ErrCloseTimeout is returned by Close when the writer does not finish in time.
	ErrCloseTimeout = errors.New("auditlog: timed out waiting for writer")

	// ErrInvalidFields is returned by Log for fields with no canonical JSON form.
	ErrInvalidFields = errors.New("auditlog: invalid event fields")
)

// Drop warnings are limited to one per second with a small burst.
const (
	dropWarnRate  = rate.Limit(1)
	dropWarnBurst = 5
)

// Logger is an asynchronous tamper-evident audit logger.
type Logger struct {
	cfg Config

	queue    chan event
	enqueuer *enqueuer
	stop     chan struct{}
	done     chan struct{}

	// mu orders Log against Close: once closed is set under the write lock
	// no producer can still be sending.
	mu     sync.RWMutex
	closed bool

	faulted atomic.Bool
	stats   counters

	w        *writer
	cipher   *aead.Cipher
	dropWarn *rate.Limiter
	log      logger.Logger
}

// Open validates cfg, opens the active file and starts the writer.
func Open(cfg Config) (*Logger, error) {
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cipher, err := aead.New(cfg.Key)
	if err != nil {
		return nil, err
	}
	cfg.Key = nil

	l := &Logger{
		cfg:      cfg,
		queue:    make(chan event, cfg.QueueCapacity),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		cipher:   cipher,
		dropWarn: rate.NewLimiter(dropWarnRate, dropWarnBurst),
		log:      cfg.Logger.With("component", "auditlog"),
	}
	l.enqueuer = newEnqueuer(l.queue, &l.cfg)

	w, err := newWriter(&l.cfg, cipher, &l.stats, &l.faulted)
	if err != nil {
		cipher.Zero()
		return nil, err
	}
	l.w = w

	go w.run(l.queue, l.stop, l.done)
	return l, nil
}

// Log records an event.
//
// A full queue is not an error: the event is counted as dropped. Log
// returns ErrFaulted under FaultFailFast after a writer failure and
// ErrInvalidFields when fields contain floats or values with no JSON form.
// After Close, Log does nothing.
func (l *Logger) Log(level Level, msg string, fields map[string]any) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil
	}
	if l.faulted.Load() {
		if l.cfg.FaultMode == FaultFailFast {
			return ErrFaulted
		}
		l.drop(level)
		return nil
	}

	if fields == nil {
		fields = map[string]any{}
	}
	canon, err := canonjson.Marshal(fields)
	if err != nil {
		l.stats.rejected.Add(1)
		return fmt.Errorf("%w: %w", ErrInvalidFields, err)
	}

	ev := event{level: level, msg: msg, fields: canon, ts: l.cfg.Now()}
	if !l.enqueuer.offer(ev) {
		l.drop(level)
	}
	return nil
}

// Debug logs at LevelDebug. args are alternating keys and values.
func (l *Logger) Debug(msg string, args ...any) error {
	return l.Log(LevelDebug, msg, argsToFields(args))
}

// Info logs at LevelInfo.
func (l *Logger) Info(msg string, args ...any) error {
	return l.Log(LevelInfo, msg, argsToFields(args))
}

// Warn logs at LevelWarn.
func (l *Logger) Warn(msg string, args ...any) error {
	return l.Log(LevelWarn, msg, argsToFields(args))
}

// Error logs at LevelError.
func (l *Logger) Error(msg string, args ...any) error {
	return l.Log(LevelError, msg, argsToFields(args))
}

func (l *Logger) drop(level Level) {
	n := l.stats.dropped.Add(1)
	if l.dropWarn.Allow() {
		l.log.Warn("audit event dropped", "level", level.String(), "dropped_total", n)
	}
}

// Close stops accepting events, waits for the writer to drain the queue,
// sync and close the active file.
//
// If ctx has no deadline, Config.ShutdownTimeout applies. When the wait
// runs out, the file is closed best-effort and ErrCloseTimeout is returned.
// Close is idempotent.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.stop)
	l.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.ShutdownTimeout)
		defer cancel()
	}

	select {
	case <-l.done:
		l.cipher.Zero()
		return l.w.closeErr()
	case <-ctx.Done():
		l.w.abandon()
		return fmt.Errorf("%w: %v", ErrCloseTimeout, ctx.Err())
	}
}

// Stats is a point-in-time snapshot of the logger's counters.
type Stats struct {
	Written     uint64 `json:"written" yaml:"written"`
	Dropped     uint64 `json:"dropped" yaml:"dropped"`
	Rejected    uint64 `json:"rejected" yaml:"rejected"`
	Rotations   uint64 `json:"rotations" yaml:"rotations"`
	Faulted     bool   `json:"faulted" yaml:"faulted"`
	ActiveBytes int64  `json:"activeBytes" yaml:"activeBytes"`
	NextSeq     uint64 `json:"nextSeq" yaml:"nextSeq"`
	QueueLen    int    `json:"queueLen" yaml:"queueLen"`
	QueueCap    int    `json:"queueCap" yaml:"queueCap"`
}

// Stats returns a snapshot of the logger's counters.
func (l *Logger) Stats() Stats {
	return Stats{
		Written:     l.stats.written.Load(),
		Dropped:     l.stats.dropped.Load(),
		Rejected:    l.stats.rejected.Load(),
		Rotations:   l.stats.rotations.Load(),
		Faulted:     l.faulted.Load(),
		ActiveBytes: l.stats.activeBytes.Load(),
		NextSeq:     l.stats.nextSeq.Load(),
		QueueLen:    len(l.queue),
		QueueCap:    cap(l.queue),
	}
}

// Dir returns the log directory.
func (l *Logger) Dir() string {
	return l.cfg.Dir
}

// ActiveFile returns the active file name.
func (l *Logger) ActiveFile() string {
	return l.cfg.ActiveFile
}

// Done is closed once the writer goroutine has exited.
func (l *Logger) Done() <-chan struct{} {
	return l.done
}

// argsToFields converts alternating key/value pairs into a field map.
// A non-string key or a trailing value is stored under "!BADKEY".
func argsToFields(args []any) map[string]any {
	fields := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			fields["!BADKEY"] = args[i]
			i++
			continue
		}
		fields[key] = args[i+1]
		i += 2
	}
	return fields
}
