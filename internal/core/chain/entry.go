package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/erik-marten/VeriLog/pkg/canonjson"
)

// ErrMalformedEntry is returned when entry JSON does not have the
// expected shape.
var ErrMalformedEntry = errors.New("chain: malformed entry")

// Entry is a signed log entry as stored inside a frame.
type Entry struct {
	Version   int64
	Seq       uint64
	TS        string
	Actor     string
	EventType string
	Event     map[string]any
	PrevHash  string
	KeyID     string
	EntryHash string
	Sig       string

	// raw holds the decoded document for parsed entries, so hashing covers
	// exactly the fields that were stored.
	raw map[string]any
}

// Unsigned returns the fields covered by the entry hash.
func (e *Entry) Unsigned() map[string]any {
	if e.raw != nil {
		m := make(map[string]any, len(e.raw))
		for k, v := range e.raw {
			if k == "entryHash" || k == "sig" {
				continue
			}
			m[k] = v
		}
		return m
	}
	return map[string]any{
		"version":   e.Version,
		"seq":       e.Seq,
		"ts":        e.TS,
		"actor":     e.Actor,
		"eventType": e.EventType,
		"event":     e.Event,
		"prevHash":  e.PrevHash,
		"keyId":     e.KeyID,
	}
}

// ComputeHash returns hex(SHA-256(canonical unsigned fields)).
func (e *Entry) ComputeHash() (string, error) {
	sum, err := e.hashBytes()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

func (e *Entry) hashBytes() ([]byte, error) {
	canon, err := canonjson.Marshal(e.Unsigned())
	if err != nil {
		return nil, fmt.Errorf("chain: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canon)
	return sum[:], nil
}

// Encode returns the stored JSON form of a signed entry.
func (e *Entry) Encode() ([]byte, error) {
	m := e.Unsigned()
	m["entryHash"] = e.EntryHash
	m["sig"] = e.Sig
	return canonjson.Marshal(m)
}

// Parse decodes a stored entry.
func Parse(data []byte) (*Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedEntry)
	}

	e := &Entry{raw: raw}
	var err error
	if e.Version, err = intField(raw, "version"); err != nil {
		return nil, err
	}
	seq, err := intField(raw, "seq")
	if err != nil {
		return nil, err
	}
	if seq < 0 {
		return nil, fmt.Errorf("%w: negative seq", ErrMalformedEntry)
	}
	e.Seq = uint64(seq)

	for _, f := range []struct {
		key string
		dst *string
	}{
		{"ts", &e.TS},
		{"actor", &e.Actor},
		{"eventType", &e.EventType},
		{"prevHash", &e.PrevHash},
		{"keyId", &e.KeyID},
		{"entryHash", &e.EntryHash},
		{"sig", &e.Sig},
	} {
		if *f.dst, err = stringField(raw, f.key); err != nil {
			return nil, err
		}
	}

	ev, ok := raw["event"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: event must be an object", ErrMalformedEntry)
	}
	e.Event = ev
	return e, nil
}

// Message returns event.msg, if present.
func (e *Entry) Message() string {
	s, _ := e.Event["msg"].(string)
	return s
}

// Fields returns event.fields, if present.
func (e *Entry) Fields() map[string]any {
	m, _ := e.Event["fields"].(map[string]any)
	return m
}

func intField(m map[string]any, key string) (int64, error) {
	n, ok := m[key].(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrMalformedEntry, key)
	}
	v, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformedEntry, key, err)
	}
	return v, nil
}

func stringField(m map[string]any, key string) (string, error) {
	s, ok := m[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrMalformedEntry, key)
	}
	return s, nil
}
