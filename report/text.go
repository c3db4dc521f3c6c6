package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TextSink writes one line per record to a per-payload result file and
// echoes it, prefixed with the payload name, to a console writer. Lines are
// written unbuffered so that everything recorded before a fatal abort
// stays on disk.
type TextSink struct {
	meta    Meta
	path    string
	file    *os.File
	console io.Writer
}

// NewTextSink creates (or truncates) the result file for meta inside dir.
// A nil console disables the echo.
func NewTextSink(dir string, meta Meta, console io.Writer) (*TextSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, Filename(meta))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create result file: %w", err)
	}

	return &TextSink{
		meta:    meta,
		path:    path,
		file:    f,
		console: console,
	}, nil
}

// Path returns the result file path.
func (s *TextSink) Path() string {
	return s.path
}

// Record appends one timing series.
func (s *TextSink) Record(label string, batchSize int, times []float64) error {
	line := FormatLine(label, batchSize, times)

	if s.console != nil {
		if _, err := fmt.Fprintln(s.console, s.meta.Payload, line); err != nil {
			return fmt.Errorf("write console: %w", err)
		}
	}

	if _, err := fmt.Fprintln(s.file, line); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}

	return nil
}

// Close closes the result file.
func (s *TextSink) Close() error {
	return s.file.Close()
}
