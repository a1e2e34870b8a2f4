package auditlog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erik-marten/VeriLog/internal/storage/vlog"
	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
	"github.com/erik-marten/VeriLog/pkg/crypto/aead"
	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

// Level is the severity of an audit event. It becomes the entry's eventType.
type Level int

// Levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("auditlog: unknown level %q", s)
	}
}

// BackpressureMode defines what happens when the queue is full.
type BackpressureMode string

const (
	BackpressureBlock BackpressureMode = "block"
	BackpressureDrop  BackpressureMode = "drop"
)

// FaultMode defines how Log behaves once the writer has faulted.
type FaultMode string

const (
	FaultFailFast    FaultMode = "fail_fast"
	FaultDropOnFault FaultMode = "drop_on_fault"
)

// Default configuration values.
const (
	DefaultDir             = "./logs"
	DefaultFilePrefix      = "app"
	DefaultActiveFile      = "current.vlog"
	DefaultActor           = "app"
	DefaultQueueCapacity   = 50000
	DefaultOfferTimeout    = 50 * time.Millisecond
	DefaultRotateBytes     = 100 << 20 // 100MB
	DefaultFlushEveryN     = 500
	DefaultFlushInterval   = time.Second
	DefaultShutdownTimeout = 5 * time.Second

	// MinRotateBytes is the smallest accepted rotation threshold.
	MinRotateBytes = 1 << 20
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("auditlog: invalid config")

// Config configures a Logger.
type Config struct {
	Dir        string
	FilePrefix string
	ActiveFile string
	AADPrefix  string

	// Key is the 32-byte data-encryption key. Open copies it.
	Key []byte

	// Signer signs entries. Required.
	Signer ecsig.Signer
	Actor  string

	QueueCapacity                 int
	Backpressure                  BackpressureMode
	OfferTimeout                  time.Duration
	PreferReliabilityForWarnError bool
	FaultMode                     FaultMode

	RotateBytes     int64
	RotateOnStartup bool

	FlushEveryN   int
	FlushInterval time.Duration
	FsyncOnFlush  bool

	// ShutdownTimeout bounds Close when its context has no deadline.
	ShutdownTimeout time.Duration

	// Logger receives diagnostics. Defaults to logger.Default().
	Logger logger.Logger

	// Now is the clock used for entry timestamps.
	Now func() time.Time
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                           dir,
		FilePrefix:                    DefaultFilePrefix,
		ActiveFile:                    DefaultActiveFile,
		AADPrefix:                     vlog.DefaultAADPrefix,
		Actor:                         DefaultActor,
		QueueCapacity:                 DefaultQueueCapacity,
		Backpressure:                  BackpressureBlock,
		OfferTimeout:                  DefaultOfferTimeout,
		PreferReliabilityForWarnError: true,
		FaultMode:                     FaultDropOnFault,
		RotateBytes:                   DefaultRotateBytes,
		RotateOnStartup:               true,
		FlushEveryN:                   DefaultFlushEveryN,
		FlushInterval:                 DefaultFlushInterval,
		ShutdownTimeout:               DefaultShutdownTimeout,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.AADPrefix == "" {
		cfg.AADPrefix = vlog.DefaultAADPrefix
	}
	if cfg.Backpressure == "" {
		cfg.Backpressure = BackpressureBlock
	}
	if cfg.FaultMode == "" {
		cfg.FaultMode = FaultDropOnFault
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(strings.TrimSpace(c.Dir) != "", "dir is required")
	check(strings.TrimSpace(c.FilePrefix) != "", "file prefix is required")
	check(strings.TrimSpace(c.ActiveFile) != "", "active file name is required")
	check(strings.TrimSpace(c.Actor) != "", "actor is required")
	check(len(c.Key) == aead.KeySize, "key must be 32 bytes")
	check(c.Signer != nil, "signer is required")
	check(c.QueueCapacity >= 1, "queue capacity must be >= 1")
	check(c.OfferTimeout >= 0, "offer timeout must be >= 0")
	check(c.RotateBytes >= MinRotateBytes, "rotate bytes must be >= 1MiB")
	check(c.FlushEveryN >= 1, "flush every N must be >= 1")
	check(c.FlushInterval >= time.Millisecond, "flush interval must be >= 1ms")
	check(c.Backpressure == BackpressureBlock || c.Backpressure == BackpressureDrop,
		fmt.Sprintf("unknown backpressure mode %q", c.Backpressure))
	check(c.FaultMode == FaultFailFast || c.FaultMode == FaultDropOnFault,
		fmt.Sprintf("unknown fault mode %q", c.FaultMode))

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
