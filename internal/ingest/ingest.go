package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/erik-marten/VeriLog/internal/auditlog"
	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
)

// Sink receives events. *auditlog.Logger implements it.
type Sink interface {
	Log(level auditlog.Level, msg string, fields map[string]any) error
}

// Line is one input record.
type Line struct {
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	Fields map[string]any `json:"fields"`
}

// Result counts what Run did.
type Result struct {
	Lines   int `json:"lines" yaml:"lines"`
	Logged  int `json:"logged" yaml:"logged"`
	Invalid int `json:"invalid" yaml:"invalid"`
}

// Run reads r until EOF or until ctx is done. It returns early with an
// error when the sink reports auditlog.ErrFaulted or reading fails.
func Run(ctx context.Context, r io.Reader, sink Sink, log logger.Logger) (Result, error) {
	if log == nil {
		log = logger.Default()
	}
	var res Result
	reader := bufio.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return res, nil
		}

		raw, readErr := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(raw)) > 0 {
			res.Lines++
			if err := handle(raw, sink); err != nil {
				if errors.Is(err, auditlog.ErrFaulted) {
					return res, err
				}
				res.Invalid++
				log.Warn("skipping input line", "line", res.Lines, "error", err)
			} else {
				res.Logged++
			}
		}

		if readErr == io.EOF {
			return res, nil
		}
		if readErr != nil {
			return res, fmt.Errorf("ingest: read: %w", readErr)
		}
	}
}

func handle(raw []byte, sink Sink) error {
	line, err := Parse(raw)
	if err != nil {
		return err
	}
	level, err := auditlog.ParseLevel(line.Level)
	if err != nil {
		return err
	}
	return sink.Log(level, line.Msg, line.Fields)
}

// Parse decodes one input line. Numbers are kept as json.Number so
// integers survive exactly.
func Parse(raw []byte) (Line, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var line Line
	if err := dec.Decode(&line); err != nil {
		return Line{}, fmt.Errorf("ingest: decode line: %w", err)
	}
	if line.Level == "" {
		line.Level = auditlog.LevelInfo.String()
	}
	return line, nil
}
