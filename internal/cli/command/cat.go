package command

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/erik-marten/VeriLog/internal/auditlog"
	"github.com/erik-marten/VeriLog/internal/cli/output"
	"github.com/erik-marten/VeriLog/internal/core/chain"
	"github.com/erik-marten/VeriLog/internal/storage/vlog"
	"github.com/erik-marten/VeriLog/internal/verify"
)

// CatCommand returns the cat command.
func CatCommand() *cli.Command {
	return &cli.Command{
		Name:  "cat",
		Usage: "Decrypt and print verified entries",
		Description: "Entries are printed only after they verify. Replay stops at the first\n" +
			"failure and the command exits with status 2.",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Directory of log files, read in rotation order",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Single log file",
			},
			&cli.StringFlag{
				Name:  "active-file",
				Usage: "Name of the file still being written in --dir",
				Value: auditlog.DefaultActiveFile,
			},
			&cli.BoolFlag{
				Name:  "tolerate-partial",
				Usage: "Accept a trailing partial frame (--file)",
			},
		}, keyFlags()...),
		Action: runCat,
	}
}

// catEntry is one printed entry.
type catEntry struct {
	Seq       uint64         `json:"seq" yaml:"seq"`
	TS        string         `json:"ts" yaml:"ts"`
	Actor     string         `json:"actor" yaml:"actor"`
	EventType string         `json:"eventType" yaml:"eventType"`
	Msg       string         `json:"msg" yaml:"msg"`
	Fields    map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
	KeyID     string         `json:"keyId" yaml:"keyId"`
	EntryHash string         `json:"entryHash" yaml:"entryHash"`
}

func newCatEntry(e *chain.Entry) catEntry {
	return catEntry{
		Seq:       e.Seq,
		TS:        e.TS,
		Actor:     e.Actor,
		EventType: e.EventType,
		Msg:       e.Message(),
		Fields:    e.Fields(),
		KeyID:     e.KeyID,
		EntryHash: e.EntryHash,
	}
}

type catResult []catEntry

// Table implements output.Tabular.
func (r catResult) Table() *output.Table {
	t := &output.Table{Headers: []string{"SEQ", "TS", "LEVEL", "ACTOR", "MSG"}}
	for _, e := range r {
		t.AddRow(strconv.FormatUint(e.Seq, 10), e.TS, e.EventType, e.Actor, e.Msg)
	}
	return t
}

func runCat(c *cli.Context) error {
	dir, file := c.String("dir"), c.String("file")
	if (dir == "") == (file == "") {
		return usageErrorf("exactly one of --dir or --file is required")
	}

	dek, keys, err := readKeys(c)
	if err != nil {
		return err
	}
	defer zero(dek)

	paths := []string{file}
	tolerate := map[string]bool{file: c.Bool("tolerate-partial")}
	if dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return ioError(err)
		}
		active := c.String("active-file")
		if paths, err = vlog.ListLogFiles(dir, active); err != nil {
			return ioError(err)
		}
		tolerate = map[string]bool{filepath.Join(dir, active): true}
	}

	log := opLogger(c)
	var out catResult
	var failed *verify.Report
	for _, path := range paths {
		log.Debug("reading file", "path", path)
		entries, rep, err := verify.ReadEntries(path, dek, keys, tolerate[path])
		if err != nil {
			return ioError(err)
		}
		for _, e := range entries {
			out = append(out, newCatEntry(e))
		}
		if !rep.OK {
			failed = &rep
			break
		}
	}

	if err := render(c, out); err != nil {
		return err
	}
	if failed != nil {
		return verifyFailedf("verification failed: %s seq=%d: %s", failed.Path, failed.Seq, failed.Reason)
	}
	return nil
}
