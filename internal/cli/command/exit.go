package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitVerifyFailed = 2
	ExitUsage        = 3
	ExitIO           = 4
)

// ExitCode maps an error returned by App().Run to a process exit code.
// Errors that carry no code are argument errors from flag parsing.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return ExitUsage
}

func usageErrorf(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), ExitUsage)
}

func ioError(err error) error {
	return cli.Exit(err.Error(), ExitIO)
}

func verifyFailedf(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), ExitVerifyFailed)
}
