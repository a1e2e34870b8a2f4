// Package command provides the command definitions of verilog-cli.
//
// It uses urfave/cli/v2 for command parsing. Commands report failures as
// cli.ExitCoder values carrying the process exit code:
//
//	0  everything verified
//	2  verification failed
//	3  bad arguments or key material
//	4  unexpected I/O error
package command
