package jsonlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// ErrClosed is returned by Append and Close once the writer has been closed.
var ErrClosed = errors.New("jsonlog: writer closed")

// Extension is appended to the stream name to form the file name.
const Extension = ".json"

type kind uint8

const (
	kindInt kind = iota
	kindFloat64
	kindFloat32
)

// Value is a single numeric record value.
type Value struct {
	kind kind
	i    int64
	f    float64
}

// Int wraps an integer value.
func Int(v int64) Value { return Value{kind: kindInt, i: v} }

// Float64 wraps a double precision value.
func Float64(v float64) Value { return Value{kind: kindFloat64, f: v} }

// Float32 wraps a single precision value. It is printed with the shortest
// representation that round-trips through float32.
func Float32(v float32) Value { return Value{kind: kindFloat32, f: float64(v)} }

// Field is one key/value pair of a record. Keys are plain ASCII identifiers.
type Field struct {
	Key   string
	Value Value
}

// Record is an ordered list of fields, written in slice order.
type Record []Field

// Writer appends records to a single named JSON list:
//
//	{
//	  "<name>": [
//	    {"k": v, ...},
//	    ...
//	  ]
//	}
//
// A Writer is not safe for concurrent use; each stream is expected to be fed
// by exactly one dispatch path.
type Writer struct {
	name    string
	path    string
	file    *os.File
	buf     *bufio.Writer
	count   int
	closed  bool
	scratch []byte
}

// Open creates <dir>/<name>.json and writes the list preamble. An existing
// file is never truncated; Open fails with an error wrapping fs.ErrExist.
func Open(dir, name string) (*Writer, error) {
	if name == "" {
		return nil, fmt.Errorf("stream name is required")
	}

	path := filepath.Join(dir, name+Extension)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	key, err := json.Marshal(name)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("encode stream name %q: %w", name, err)
	}

	w := &Writer{
		name:    name,
		path:    path,
		file:    f,
		buf:     bufio.NewWriterSize(f, 64*1024),
		scratch: make([]byte, 0, 256),
	}

	if _, err := fmt.Fprintf(w.buf, "{\n  %s: [", key); err != nil {
		f.Close()
		return nil, fmt.Errorf("write %s preamble: %w", name, err)
	}

	return w, nil
}

// Name returns the stream name.
func (w *Writer) Name() string { return w.name }

// Path returns the output file path.
func (w *Writer) Path() string { return w.path }

// Count returns the number of records appended so far.
func (w *Writer) Count() int { return w.count }

// Append writes one record. The record is encoded completely before anything
// reaches the output, so an encoding error never leaves a partial object.
func (w *Writer) Append(rec Record) error {
	if w.closed {
		return ErrClosed
	}

	b := w.scratch[:0]
	if w.count > 0 {
		b = append(b, ',')
	}
	b = append(b, "\n    {"...)
	for i, field := range rec {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = strconv.AppendQuote(b, field.Key)
		b = append(b, ": "...)

		var err error
		b, err = appendValue(b, field.Value)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", w.name, field.Key, err)
		}
	}
	b = append(b, '}')
	w.scratch = b

	if _, err := w.buf.Write(b); err != nil {
		return fmt.Errorf("write %s record: %w", w.name, err)
	}
	w.count++
	return nil
}

// Close terminates the list, flushes and releases the file.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	tail := "]\n}\n"
	if w.count > 0 {
		tail = "\n  ]\n}\n"
	}

	var firstErr error
	if _, err := w.buf.WriteString(tail); err != nil {
		firstErr = fmt.Errorf("write %s epilogue: %w", w.name, err)
	}
	if err := w.buf.Flush(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("flush %s: %w", w.name, err)
	}
	if err := w.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close %s: %w", w.path, err)
	}
	return firstErr
}

func appendValue(b []byte, v Value) ([]byte, error) {
	switch v.kind {
	case kindInt:
		return strconv.AppendInt(b, v.i, 10), nil
	case kindFloat64, kindFloat32:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return b, fmt.Errorf("unsupported value %v", v.f)
		}
		bits := 64
		if v.kind == kindFloat32 {
			bits = 32
		}
		return strconv.AppendFloat(b, v.f, 'g', -1, bits), nil
	default:
		return b, fmt.Errorf("unknown value kind %d", v.kind)
	}
}
