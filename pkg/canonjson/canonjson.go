// Package canonjson produces the canonical JSON form used as hash input.
//
// Canonical output has object keys sorted by Unicode code point, no
// insignificant whitespace, integers only, and the minimal escape set:
// \" \\ \b \f \n \r \t, with any other control character written as a
// lowercase \u00xx escape. All other characters are written verbatim.
// Invalid UTF-8 bytes are written as U+FFFD, the rune encoding/json
// decodes them to.
//
// Floating-point numbers are rejected with ErrFloat: two producers that
// disagree on float formatting would otherwise disagree on the hash.
package canonjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// ErrFloat is returned when the input contains a non-integer number.
	ErrFloat = errors.New("canonjson: floating point numbers are not allowed")

	// ErrIntRange is returned for integers outside the int64 range.
	ErrIntRange = errors.New("canonjson: integer out of range")

	// ErrUnsupported is returned for Go values with no JSON form.
	ErrUnsupported = errors.New("canonjson: unsupported value")
)

const hexDigits = "0123456789abcdef"

// Canonicalize parses a JSON document and re-encodes it canonically.
func Canonicalize(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canonjson: parse: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("canonjson: parse: trailing data after document")
	}

	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Marshal encodes v canonically.
//
// The common dynamic shapes (maps, slices, strings, bools, integers,
// json.Number) are encoded directly; float32 and float64 values are
// rejected. Any other value is first encoded with encoding/json and
// then canonicalized.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeString(buf, x)
	case json.Number:
		return writeNumber(buf, x)
	case int:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case uint:
		return writeUint(buf, uint64(x))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint64:
		return writeUint(buf, x)
	case float32, float64:
		return ErrFloat
	case map[string]any:
		return writeObject(buf, x)
	case map[string]string:
		m := make(map[string]any, len(x))
		for k, s := range x {
			m[k] = s
		}
		return writeObject(buf, m)
	case []any:
		return writeArray(buf, x)
	case []string:
		arr := make([]any, len(x))
		for i, s := range x {
			arr[i] = s
		}
		return writeArray(buf, arr)
	case json.RawMessage:
		out, err := Canonicalize(x)
		if err != nil {
			return err
		}
		buf.Write(out)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: %T: %v", ErrUnsupported, v, err)
		}
		out, err := Canonicalize(raw)
		if err != nil {
			return err
		}
		buf.Write(out)
	}
	return nil
}

func writeObject(buf *bytes.Buffer, m map[string]any) error {
	type member struct {
		name string // valid UTF-8 form of key
		key  string
	}
	members := make([]member, 0, len(m))
	for k := range m {
		members = append(members, member{name: strings.ToValidUTF8(k, string(utf8.RuneError)), key: k})
	}
	// Byte order of UTF-8 strings is code point order.
	sort.Slice(members, func(i, j int) bool { return members[i].name < members[j].name })

	buf.WriteByte('{')
	for i, mb := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, mb.name)
		buf.WriteByte(':')
		if err := encode(buf, m[mb.key]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, e := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, e); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeNumber(buf *bytes.Buffer, n json.Number) error {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		return ErrFloat
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return ErrIntRange
		}
		return fmt.Errorf("canonjson: bad number %q: %w", s, err)
	}
	buf.WriteString(strconv.FormatInt(i, 10))
	return nil
}

func writeUint(buf *bytes.Buffer, u uint64) error {
	if u > math.MaxInt64 {
		return ErrIntRange
	}
	buf.WriteString(strconv.FormatUint(u, 10))
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				buf.WriteRune(utf8.RuneError)
			} else {
				buf.WriteString(s[i : i+size])
			}
			i += size
			continue
		}
		i++
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[c>>4])
				buf.WriteByte(hexDigits[c&0xF])
			} else {
				buf.WriteByte(c)
			}
		}
	}
	buf.WriteByte('"')
}
