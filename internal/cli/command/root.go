package command

import (
	"github.com/urfave/cli/v2"

	"github.com/erik-marten/VeriLog/internal/cli/output"
	"github.com/erik-marten/VeriLog/internal/infra/buildinfo"
	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
)

const metaLogger = "logger"

// App creates the CLI application. Errors from Run are returned rather
// than handled; pass them to ExitCode.
func App() *cli.App {
	return &cli.App{
		Name:    "verilog-cli",
		Usage:   "Verify and inspect VeriLog audit logs",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			VerifyCommand(),
			CatCommand(),
			KeyIDCommand(),
			KeygenCommand(),
			IngestCommand(),
		},
		Metadata: map[string]any{},
		Before: func(c *cli.Context) error {
			if _, err := output.ParseFormat(c.String("output")); err != nil {
				return usageErrorf("%v", err)
			}
			log, err := logger.New(logger.Config{
				Level:  c.String("log-level"),
				Format: "text",
				Output: c.App.ErrWriter,
			})
			if err != nil {
				return usageErrorf("init logger: %v", err)
			}
			c.App.Metadata[metaLogger] = log
			return nil
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, jsonl, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Diagnostic log level: debug, info, warn, error",
			Value: "warn",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file supplying keys and writer settings",
		},
	}
}

// GlobalFlags holds the parsed global flags.
type GlobalFlags struct {
	Output     output.Format
	LogLevel   string
	ConfigFile string
}

// ParseGlobalFlags extracts global flags from context. The output format
// was validated by the App's Before hook.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	format, _ := output.ParseFormat(c.String("output"))
	return &GlobalFlags{
		Output:     format,
		LogLevel:   c.String("log-level"),
		ConfigFile: c.String("config"),
	}
}

// loggerFrom returns the diagnostic logger set up by the Before hook.
func loggerFrom(c *cli.Context) logger.Logger {
	if l, ok := c.App.Metadata[metaLogger].(logger.Logger); ok {
		return l
	}
	return logger.Discard()
}

// opLogger returns the diagnostic logger tagged with the command name.
func opLogger(c *cli.Context) logger.Logger {
	ctx := logger.WithLogger(c.Context, loggerFrom(c))
	return logger.L(logger.WithOperation(ctx, c.Command.Name))
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	f := output.NewFormatter(ParseGlobalFlags(c).Output)
	if err := f.Format(c.App.Writer, data); err != nil {
		return ioError(err)
	}
	return nil
}
