package service

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pilotguru/sensorlog/internal/jsonlog"
	"github.com/pilotguru/sensorlog/internal/session"
)

var streamFields = map[string][]string{
	session.StreamRotations:     {"x", "y", "z", "time_usec"},
	session.StreamAccelerations: {"x", "y", "z", "time_usec"},
	session.StreamLocations:     {"lat", "lon", "accuracy_m", "speed_m_s", "bearing_degrees", "time_usec"},
	session.StreamFrames:        {"frame_id", "sensor_timestamp", "time_usec"},
}

// Verify parses the four stream logs in dir and returns the record count of
// each. A file that is missing or is not a single-key JSON object is an
// error, as is a record whose fields differ from the stream's fixed field
// order.
func Verify(dir string) (map[string]int, error) {
	counts := make(map[string]int, len(session.Streams))
	for _, name := range session.Streams {
		n, err := verifyStream(filepath.Join(dir, name+jsonlog.Extension), name)
		if err != nil {
			return counts, err
		}
		counts[name] = n
	}
	return counts, nil
}

// Verify checks a session directory; see the package level Verify.
func (s *SensorLogService) Verify(dir string) (map[string]int, error) {
	return Verify(dir)
}

// verifyStream walks the tokens of one stream log so that key order is
// checked as well as presence.
func verifyStream(path, name string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", name, err)
	}
	defer f.Close()

	v := &streamVerifier{path: path, dec: json.NewDecoder(bufio.NewReader(f))}
	v.dec.UseNumber()

	if err := v.expect(json.Delim('{')); err != nil {
		return 0, err
	}
	tok, err := v.next()
	if err != nil {
		return 0, err
	}
	if key, ok := tok.(string); !ok || key != name {
		return 0, fmt.Errorf("%s: missing top-level key %q", path, name)
	}
	if err := v.expect(json.Delim('[')); err != nil {
		return 0, err
	}

	count := 0
	for v.dec.More() {
		if err := v.record(count, streamFields[name]); err != nil {
			return 0, err
		}
		count++
	}

	if err := v.expect(json.Delim(']')); err != nil {
		return 0, err
	}
	if v.dec.More() {
		return 0, fmt.Errorf("%s: expected exactly one top-level key", path)
	}
	if err := v.expect(json.Delim('}')); err != nil {
		return 0, err
	}
	if _, err := v.dec.Token(); err != io.EOF {
		return 0, fmt.Errorf("%s: unexpected data after the top-level object", path)
	}
	return count, nil
}

type streamVerifier struct {
	path string
	dec  *json.Decoder
}

func (v *streamVerifier) next() (json.Token, error) {
	tok, err := v.dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%s is not valid: %w", v.path, err)
	}
	return tok, nil
}

func (v *streamVerifier) expect(d json.Delim) error {
	tok, err := v.next()
	if err != nil {
		return err
	}
	if got, ok := tok.(json.Delim); !ok || got != d {
		return fmt.Errorf("%s is not valid: expected %q, got %v", v.path, d, tok)
	}
	return nil
}

// record checks that record i holds exactly fields, in order, each a number.
func (v *streamVerifier) record(i int, fields []string) error {
	if err := v.expect(json.Delim('{')); err != nil {
		return err
	}

	n := 0
	for v.dec.More() {
		tok, err := v.next()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		if n >= len(fields) {
			return fmt.Errorf("%s: record %d has unexpected field %q", v.path, i, key)
		}
		if key != fields[n] {
			return fmt.Errorf("%s: record %d field %d is %q, want %q", v.path, i, n, key, fields[n])
		}

		val, err := v.next()
		if err != nil {
			return err
		}
		if _, ok := val.(json.Number); !ok {
			return fmt.Errorf("%s: record %d field %q is not a number", v.path, i, key)
		}
		n++
	}
	if err := v.expect(json.Delim('}')); err != nil {
		return err
	}
	if n < len(fields) {
		return fmt.Errorf("%s: record %d has no %q", v.path, i, fields[n])
	}
	return nil
}
