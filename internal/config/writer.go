package config

import (
	"github.com/erik-marten/VeriLog/internal/auditlog"
	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
)

// WriterConfig builds the audit writer configuration, loading the DEK and
// the signing key.
func (c *Config) WriterConfig(log logger.Logger) (auditlog.Config, error) {
	dek, err := c.Keys.LoadDEK()
	if err != nil {
		return auditlog.Config{}, err
	}
	signer, err := c.Keys.Signer()
	if err != nil {
		zero(dek)
		return auditlog.Config{}, err
	}

	w := c.Writer
	return auditlog.Config{
		Dir:                           w.Dir,
		FilePrefix:                    w.FilePrefix,
		ActiveFile:                    w.ActiveFile,
		AADPrefix:                     w.AADPrefix,
		Key:                           dek,
		Signer:                        signer,
		Actor:                         w.Actor,
		QueueCapacity:                 w.QueueCapacity,
		Backpressure:                  auditlog.BackpressureMode(w.Backpressure),
		OfferTimeout:                  w.OfferTimeout,
		PreferReliabilityForWarnError: w.PreferReliabilityForWarnError,
		FaultMode:                     auditlog.FaultMode(w.FaultMode),
		RotateBytes:                   w.RotateBytes,
		RotateOnStartup:               w.RotateOnStartup,
		FlushEveryN:                   w.FlushEveryN,
		FlushInterval:                 w.FlushInterval,
		FsyncOnFlush:                  w.FsyncOnFlush,
		ShutdownTimeout:               w.ShutdownTimeout,
		Logger:                        log,
	}, nil
}
