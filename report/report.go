// Package report records the raw timing series produced by the sweep. Each
// payload gets its own append-only text file, mirrored line by line to a
// console stream, and optionally to a SQLite database for later analysis.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sink receives one timing series per (strategy, batch size) pair.
type Sink interface {
	Record(label string, batchSize int, times []float64) error
	Close() error
}

// Meta describes the run a sink belongs to. All of it is encoded in the
// result file name.
type Meta struct {
	Payload      string
	HashFunction string
	M            uint64
	N            uint64
	Repetitions  int
	ElementBytes int
	Aligned      bool
	TimeUnit     TimeUnit
	Notes        string
}

// TimeUnit is the unit timing samples are expressed in.
type TimeUnit string

// Supported time units.
const (
	Nanoseconds  TimeUnit = "nanoseconds"
	Microseconds TimeUnit = "microseconds"
	Milliseconds TimeUnit = "milliseconds"
)

// ParseTimeUnit accepts the full unit name or its short form (ns, us, ms).
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch strings.ToLower(s) {
	case "ns", "nanoseconds":
		return Nanoseconds, nil
	case "us", "µs", "microseconds", "":
		return Microseconds, nil
	case "ms", "milliseconds":
		return Milliseconds, nil
	default:
		return "", fmt.Errorf("unknown time unit %q", s)
	}
}

// Convert truncates d to whole units.
func (u TimeUnit) Convert(d time.Duration) float64 {
	switch u {
	case Nanoseconds:
		return float64(d.Nanoseconds())
	case Milliseconds:
		return float64(d.Milliseconds())
	default:
		return float64(d.Microseconds())
	}
}

// Filename returns the result file name for meta:
// payload.hash.M.N.reps.bytes.(aligned|unaligned).unit-notes.txt
func Filename(meta Meta) string {
	alignment := "unaligned"
	if meta.Aligned {
		alignment = "aligned"
	}

	return fmt.Sprintf("%s.%s.%d.%d.%d.%d.%s.%s-%s.txt",
		sanitize(meta.Payload),
		sanitize(meta.HashFunction),
		meta.M,
		meta.N,
		meta.Repetitions,
		meta.ElementBytes,
		alignment,
		meta.TimeUnit,
		sanitize(meta.Notes),
	)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', '\t', '\n', ':':
			return '.'
		}

		return r
	}, s)
}

// FormatLine renders "label batchSize t1 t2 ... tk".
func FormatLine(label string, batchSize int, times []float64) string {
	var b strings.Builder

	b.WriteString(label)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(batchSize))

	for _, t := range times {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	}

	return b.String()
}

// Multi fans records out to every sink. Record stops at the first error;
// Close closes all sinks and joins their errors.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Record(label string, batchSize int, times []float64) error {
	for _, s := range m {
		if err := s.Record(label, batchSize, times); err != nil {
			return err
		}
	}

	return nil
}

func (m multiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}

	return errors.Join(errs...)
}

// FormatBytes renders b with a binary unit suffix.
func FormatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + " " + units[unit]
}
