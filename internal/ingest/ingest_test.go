package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/erik-marten/VeriLog/internal/auditlog"
	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
)

type record struct {
	level  auditlog.Level
	msg    string
	fields map[string]any
}

type fakeSink struct {
	records []record
	err     error
}

func (s *fakeSink) Log(level auditlog.Level, msg string, fields map[string]any) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record{level, msg, fields})
	return nil
}

func TestRun(t *testing.T) {
	input := strings.Join([]string{
		`{"level":"warn","msg":"disk low","fields":{"free":42}}`,
		``,
		`not json`,
		`{"msg":"defaulted"}`,
		`{"level":"loud","msg":"bad level"}`,
		`{"level":"ERROR","msg":"no newline"}`,
	}, "\n")

	sink := &fakeSink{}
	res, err := Run(context.Background(), strings.NewReader(input), sink, logger.Discard())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := Result{Lines: 5, Logged: 3, Invalid: 2}
	if res != want {
		t.Errorf("Result = %+v, want %+v", res, want)
	}
	if len(sink.records) != 3 {
		t.Fatalf("records = %d, want 3", len(sink.records))
	}
	if sink.records[0].level != auditlog.LevelWarn || sink.records[0].msg != "disk low" {
		t.Errorf("record 0 = %+v", sink.records[0])
	}
	if n, ok := sink.records[0].fields["free"].(json.Number); !ok || n.String() != "42" {
		t.Errorf("free = %#v, want json.Number 42", sink.records[0].fields["free"])
	}
	if sink.records[1].level != auditlog.LevelInfo {
		t.Errorf("record 1 level = %v, want INFO", sink.records[1].level)
	}
	if sink.records[2].level != auditlog.LevelError {
		t.Errorf("record 2 level = %v, want ERROR", sink.records[2].level)
	}
}

func TestRun_StopsOnFault(t *testing.T) {
	sink := &fakeSink{err: auditlog.ErrFaulted}
	res, err := Run(context.Background(), strings.NewReader("{\"msg\":\"a\"}\n{\"msg\":\"b\"}\n"), sink, logger.Discard())
	if !errors.Is(err, auditlog.ErrFaulted) {
		t.Fatalf("Run() error = %v, want ErrFaulted", err)
	}
	if res.Lines != 1 {
		t.Errorf("Lines = %d, want 1", res.Lines)
	}
}

func TestRun_CountsRejectedFields(t *testing.T) {
	sink := &fakeSink{err: auditlog.ErrInvalidFields}
	res, err := Run(context.Background(), strings.NewReader(`{"msg":"a","fields":{"x":1.5}}`), sink, logger.Discard())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Invalid != 1 || res.Logged != 0 {
		t.Errorf("Result = %+v", res)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &fakeSink{}
	res, err := Run(ctx, strings.NewReader(`{"msg":"a"}`), sink, logger.Discard())
	if err != nil || res.Lines != 0 {
		t.Errorf("Run() = %+v, %v", res, err)
	}
}
