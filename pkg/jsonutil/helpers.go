// Package jsonutil provides JSON helpers shared by the freightview server
// and client.
//
// Watch streams are newline-delimited JSON: one object per line, flushed
// as soon as it is written.
package jsonutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ContentTypeNDJSON is the media type of watch streams.
const ContentTypeNDJSON = "application/x-ndjson"

// maxLineBytes bounds a single streamed object.
const maxLineBytes = 4 * 1024 * 1024

// LineWriter writes one JSON object per line, flushing after each when
// the destination supports it.
type LineWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// NewLineWriter wraps w. If w is an http.Flusher each line is flushed.
func NewLineWriter(w io.Writer) *LineWriter {
	lw := &LineWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		lw.flusher = f
	}
	return lw
}

// Write encodes v followed by a newline.
func (lw *LineWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling line: %w", err)
	}
	b = append(b, '\n')
	if _, err := lw.w.Write(b); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	if lw.flusher != nil {
		lw.flusher.Flush()
	}
	return nil
}

// LineReader decodes newline-delimited JSON objects. Blank lines are
// skipped.
type LineReader struct {
	sc *bufio.Scanner
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &LineReader{sc: sc}
}

// Next decodes the next object into v. It returns io.EOF at a clean end
// of input.
func (lr *LineReader) Next(v any) error {
	for lr.sc.Scan() {
		line := lr.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, v); err != nil {
			return fmt.Errorf("decoding line: %w", err)
		}
		return nil
	}
	if err := lr.sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

// PrettyJSON formats v with indentation for CLI output.
func PrettyJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
