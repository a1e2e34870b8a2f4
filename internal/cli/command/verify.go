package command

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/erik-marten/VeriLog/internal/auditlog"
	"github.com/erik-marten/VeriLog/internal/cli/output"
	"github.com/erik-marten/VeriLog/internal/storage/vlog"
	"github.com/erik-marten/VeriLog/internal/verify"
	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

// VerifyCommand returns the verify command.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Verify the hash chain and signatures of a log file or directory",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Directory of log files, verified in rotation order",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Single log file",
			},
			&cli.StringFlag{
				Name:  "active-file",
				Usage: "Name of the file still being written in --dir; it may end in a partial frame",
				Value: auditlog.DefaultActiveFile,
			},
			&cli.BoolFlag{
				Name:  "stop-on-first-failure",
				Usage: "Stop at the first file that fails (--dir)",
			},
			&cli.BoolFlag{
				Name:  "tolerate-partial",
				Usage: "Accept a trailing partial frame (--file)",
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "Show per-file progress on stderr (--dir)",
			},
		}, keyFlags()...),
		Action: runVerify,
	}
}

// fileResult is one verified file as printed by verify.
type fileResult struct {
	Status    string `json:"status" yaml:"status"`
	Path      string `json:"path" yaml:"path"`
	Seq       uint64 `json:"seq" yaml:"seq"`
	Entries   int    `json:"entries" yaml:"entries"`
	Reason    string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Failure   string `json:"failure,omitempty" yaml:"failure,omitempty"`
	Truncated bool   `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	FileID    string `json:"fileId,omitempty" yaml:"fileId,omitempty"`
}

// verifyResult is the output of verify.
type verifyResult struct {
	OK    bool         `json:"ok" yaml:"ok"`
	Files []fileResult `json:"files" yaml:"files"`
}

func newVerifyResult(reps ...verify.Report) verifyResult {
	res := verifyResult{OK: true, Files: make([]fileResult, 0, len(reps))}
	for _, r := range reps {
		fr := fileResult{
			Status:    "OK",
			Path:      r.Path,
			Seq:       r.Seq,
			Entries:   r.Entries,
			Truncated: r.Truncated,
			FileID:    r.FileID,
		}
		if !r.OK {
			res.OK = false
			fr.Status = "FAIL"
			fr.Reason = r.Reason
			fr.Failure = r.Failure().String()
		}
		res.Files = append(res.Files, fr)
	}
	return res
}

// Table implements output.Tabular.
func (r verifyResult) Table() *output.Table {
	t := &output.Table{Headers: []string{"STATUS", "FILE", "SEQ", "ENTRIES", "REASON"}}
	for _, f := range r.Files {
		reason := f.Reason
		switch {
		case reason != "":
			reason = f.Failure + ": " + reason
		case f.Truncated:
			reason = "partial tail ignored"
		default:
			reason = "-"
		}
		t.AddRow(f.Status, f.Path, strconv.FormatUint(f.Seq, 10), strconv.Itoa(f.Entries), reason)
	}
	return t
}

func runVerify(c *cli.Context) error {
	if c.NArg() > 0 {
		return usageErrorf("unexpected argument %q", c.Args().First())
	}
	dir, file := c.String("dir"), c.String("file")
	if (dir == "") == (file == "") {
		return usageErrorf("exactly one of --dir or --file is required")
	}

	dek, keys, err := readKeys(c)
	if err != nil {
		return err
	}
	defer zero(dek)

	log := opLogger(c)
	var (
		res    verifyResult
		failed []verify.Report
	)
	if file != "" {
		log.Debug("verifying file", "path", file, "keys", len(keys))
		rep, err := verify.VerifyFile(file, dek, keys, c.Bool("tolerate-partial"))
		if err != nil {
			return ioError(err)
		}
		res = newVerifyResult(rep)
		if !rep.OK {
			failed = append(failed, rep)
		}
	} else {
		log.Debug("verifying directory", "dir", dir, "keys", len(keys))
		drep, err := verifyDir(c, dir, dek, keys)
		if err != nil {
			return err
		}
		res = newVerifyResult(drep.Files...)
		failed = drep.Failed()
	}

	if err := render(c, res); err != nil {
		return err
	}
	if len(failed) > 0 {
		f := failed[0]
		log.Debug("verification failed", "files", len(failed))
		return verifyFailedf("verification failed: %s seq=%d: %s", f.Path, f.Seq, f.Reason)
	}
	return nil
}

func verifyDir(c *cli.Context, dir string, dek []byte, keys ecsig.KeyResolver) (verify.DirectoryReport, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return verify.DirectoryReport{}, ioError(err)
	}
	if !info.IsDir() {
		return verify.DirectoryReport{}, usageErrorf("%s is not a directory", dir)
	}

	opts := verify.DirOptions{
		ActiveFile:         c.String("active-file"),
		StopOnFirstFailure: c.Bool("stop-on-first-failure"),
	}
	var progress *output.Progress
	if c.Bool("progress") {
		files, err := vlog.ListLogFiles(dir, opts.ActiveFile)
		if err != nil {
			return verify.DirectoryReport{}, ioError(err)
		}
		progress = output.NewProgress(c.App.ErrWriter, "verifying", len(files))
		opts.OnFile = func(path string) { progress.Step(filepath.Base(path)) }
	}

	drep, err := verify.VerifyDirectory(dir, dek, keys, opts)
	if progress != nil {
		progress.Done()
	}
	if err != nil {
		return drep, ioError(fmt.Errorf("verify directory: %w", err))
	}
	return drep, nil
}
