// Package main provides the entry point for verilog-agent.
//
// verilog-agent reads JSON lines from stdin and appends them to an
// encrypted, hash-chained audit log. It optionally serves Prometheus
// metrics and reloads its diagnostic log level when the config file
// changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/erik-marten/VeriLog/internal/auditlog"
	"github.com/erik-marten/VeriLog/internal/config"
	"github.com/erik-marten/VeriLog/internal/infra/buildinfo"
	"github.com/erik-marten/VeriLog/internal/infra/confloader"
	"github.com/erik-marten/VeriLog/internal/infra/shutdown"
	"github.com/erik-marten/VeriLog/internal/ingest"
	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
	"github.com/erik-marten/VeriLog/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("verilog-agent %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log.Info("starting verilog-agent",
		"version", buildinfo.Version,
		"config", *configFile,
		"dir", cfg.Writer.Dir)
	log.Debug("effective config", "config", config.Sanitize(cfg))

	wcfg, err := cfg.WriterConfig(log)
	if err != nil {
		return fmt.Errorf("writer config: %w", err)
	}
	audit, err := auditlog.Open(wcfg)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	// Hooks run newest first: the watcher and metrics stop before the log
	// is drained and closed.
	shutdownHandler := shutdown.NewHandler(cfg.Writer.ShutdownTimeout+time.Second, log)
	shutdownHandler.OnShutdown("auditlog", func(ctx context.Context) error {
		log.Info("closing audit log")
		return audit.Close(ctx)
	})

	if cfg.Metrics.Enabled {
		srv, err := startMetrics(cfg, audit, log)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		shutdownHandler.OnShutdown("metrics", func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return srv.Shutdown(ctx)
		})
	}

	if *configFile != "" {
		watcher, err := watchConfig(*configFile, log)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
			return watcher.Stop()
		})
	}

	log.Info("audit log open", "file", audit.ActiveFile())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-audit.Done():
			log.Error("audit writer stopped", "faulted", audit.Stats().Faulted)
			cancel()
		case <-ctx.Done():
		}
	}()
	go func() {
		defer cancel()
		res, err := ingest.Run(ctx, os.Stdin, audit, log)
		if err != nil {
			log.Error("ingest stopped", "error", err)
		}
		log.Info("input finished", "lines", res.Lines, "logged", res.Logged, "invalid", res.Invalid)
	}()

	log.Info("agent started, reading events from stdin")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	st := audit.Stats()
	log.Info("verilog-agent stopped",
		"written", st.Written,
		"dropped", st.Dropped,
		"rejected", st.Rejected,
		"nextSeq", st.NextSeq)
	if st.Faulted {
		return errors.New("audit writer faulted")
	}
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.Config, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogger creates the diagnostic logger and installs it as default.
func initLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// startMetrics serves the writer metrics over HTTP.
func startMetrics(cfg *config.Config, audit *auditlog.Logger, log logger.Logger) (*http.Server, error) {
	registry := metric.NewRegistry()
	if err := registry.Register(metric.NewWriterCollector(audit, log)); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, registry.Handler())
	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics server listening", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()
	return srv, nil
}

// watchConfig reloads the diagnostic log level when the file changes.
// Writer and key settings need a restart.
func watchConfig(path string, log logger.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(path); err != nil {
		watcher.Stop()
		return nil, err
	}
	watcher.OnChange(func(string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		if strings.ToLower(cfg.Log.Level) != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	watcher.StartAsync()
	return watcher, nil
}
