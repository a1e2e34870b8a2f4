// Package main provides the entry point for verilog-cli.
//
// verilog-cli verifies and inspects VeriLog audit logs. Exit codes: 0 when
// everything verified, 2 on a verification failure, 3 for bad arguments
// and 4 for unexpected I/O errors.
package main

import (
	"fmt"
	"os"

	"github.com/erik-marten/VeriLog/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(command.ExitCode(err))
	}
}
