package config

import (
	"github.com/erik-marten/VeriLog/internal/auditlog"
	"github.com/erik-marten/VeriLog/internal/storage/vlog"
)

// Default values not owned by the auditlog package.
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultMetricsAddr = "127.0.0.1:9464"
	DefaultMetricsPath = "/metrics"
	DefaultHKDFInfo    = "verilog/dek/v1"
)

// Default returns the default configuration. It carries no key material.
func Default() *Config {
	return &Config{
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Writer: WriterSection{
			Dir:                           auditlog.DefaultDir,
			FilePrefix:                    auditlog.DefaultFilePrefix,
			ActiveFile:                    auditlog.DefaultActiveFile,
			AADPrefix:                     vlog.DefaultAADPrefix,
			Actor:                         auditlog.DefaultActor,
			QueueCapacity:                 auditlog.DefaultQueueCapacity,
			Backpressure:                  string(auditlog.BackpressureBlock),
			OfferTimeout:                  auditlog.DefaultOfferTimeout,
			PreferReliabilityForWarnError: true,
			FaultMode:                     string(auditlog.FaultDropOnFault),
			RotateBytes:                   auditlog.DefaultRotateBytes,
			RotateOnStartup:               true,
			FlushEveryN:                   auditlog.DefaultFlushEveryN,
			FlushInterval:                 auditlog.DefaultFlushInterval,
			ShutdownTimeout:               auditlog.DefaultShutdownTimeout,
		},
		Keys: KeysSection{
			HKDFInfo: DefaultHKDFInfo,
		},
		Metrics: MetricsSection{
			Addr: DefaultMetricsAddr,
			Path: DefaultMetricsPath,
		},
	}
}
