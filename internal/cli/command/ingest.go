package command

import (
	"context"
	"errors"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/erik-marten/VeriLog/internal/auditlog"
	"github.com/erik-marten/VeriLog/internal/cli/output"
	"github.com/erik-marten/VeriLog/internal/config"
	"github.com/erik-marten/VeriLog/internal/ingest"
	"github.com/erik-marten/VeriLog/pkg/crypto/aead"
)

// IngestCommand returns the ingest command.
func IngestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Append JSON lines read from stdin to an audit log",
		Description: "Each line is {\"level\": \"INFO\", \"msg\": \"...\", \"fields\": {...}}.\n" +
			"Writer settings come from --config, VERILOG_* variables and the flags below.",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Log directory",
			},
			&cli.StringFlag{
				Name:  "actor",
				Usage: "Actor recorded in every entry",
			},
			&cli.StringFlag{
				Name:  "signing-key",
				Usage: "PEM P-256 private key used to sign entries",
			},
		}, dekFlags()...),
		Action: runIngest,
	}
}

type ingestResult struct {
	ingest.Result `yaml:",inline"`
	Stats         auditlog.Stats `json:"stats" yaml:"stats"`
}

// Table implements output.Tabular.
func (r ingestResult) Table() *output.Table {
	t := &output.Table{Headers: []string{"LINES", "LOGGED", "INVALID", "WRITTEN", "DROPPED", "NEXT SEQ"}}
	t.AddRow(
		strconv.Itoa(r.Lines),
		strconv.Itoa(r.Logged),
		strconv.Itoa(r.Invalid),
		strconv.FormatUint(r.Stats.Written, 10),
		strconv.FormatUint(r.Stats.Dropped, 10),
		strconv.FormatUint(r.Stats.NextSeq, 10),
	)
	return t
}

// writerFlagValues collects writer flags set on the command line.
func writerFlagValues(c *cli.Context) map[string]any {
	values := keyFlagValues(c)
	for flag, key := range map[string]string{
		"dir":         "writer.dir",
		"actor":       "writer.actor",
		"signing-key": "keys.signing_key_file",
	} {
		if c.IsSet(flag) {
			values[key] = c.String(flag)
		}
	}
	return values
}

func runIngest(c *cli.Context) error {
	cfg, err := loadConfig(c, writerFlagValues(c))
	if err != nil {
		return err
	}
	if err := config.Verify(cfg); err != nil {
		return usageErrorf("%v", err)
	}

	log := opLogger(c)
	wcfg, err := cfg.WriterConfig(log)
	if err != nil {
		return usageErrorf("%v", err)
	}
	l, err := auditlog.Open(wcfg)
	if err != nil {
		if errors.Is(err, auditlog.ErrInvalidConfig) || errors.Is(err, aead.ErrAuth) {
			return usageErrorf("%v", err)
		}
		return ioError(err)
	}

	res, runErr := ingest.Run(c.Context, c.App.Reader, l, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Writer.ShutdownTimeout)
	defer cancel()
	closeErr := l.Close(ctx)

	if err := render(c, ingestResult{Result: res, Stats: l.Stats()}); err != nil {
		return err
	}
	if err := errors.Join(runErr, closeErr); err != nil {
		return ioError(err)
	}
	return nil
}
