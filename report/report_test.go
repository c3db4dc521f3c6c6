package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMeta() Meta {
	return Meta{
		Payload:      "p4",
		HashFunction: "fast-hash-64",
		M:            1000,
		N:            100,
		Repetitions:  5,
		ElementBytes: 4,
		Aligned:      true,
		TimeUnit:     Microseconds,
		Notes:        "xeon linux/amd64",
	}
}

func TestFilename(t *testing.T) {
	meta := testMeta()
	assert.Equal(t,
		"p4.fast-hash-64.1000.100.5.4.aligned.microseconds-xeon.linux.amd64.txt",
		Filename(meta))

	meta.Aligned = false
	meta.Notes = ""
	assert.Equal(t,
		"p4.fast-hash-64.1000.100.5.4.unaligned.microseconds-.txt",
		Filename(meta))
}

func TestFormatLine(t *testing.T) {
	assert.Equal(t, "no batch 0 12 3.5 1000000",
		FormatLine("no batch", 0, []float64{12, 3.5, 1e6}))
	assert.Equal(t, "batch only 8", FormatLine("batch only", 8, nil))
}

func TestTextSink(t *testing.T) {
	dir := t.TempDir()

	var console bytes.Buffer

	sink, err := NewTextSink(filepath.Join(dir, "out"), testMeta(), &console)
	require.NoError(t, err)

	require.NoError(t, sink.Record("no batch", 0, []float64{10, 11}))
	require.NoError(t, sink.Record("batch prefetch", 12, []float64{4, 5}))
	require.NoError(t, sink.Close())

	content, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, "no batch 0 10 11\nbatch prefetch 12 4 5\n", string(content))

	assert.Equal(t, "p4 no batch 0 10 11\np4 batch prefetch 12 4 5\n", console.String())
}

func TestTextSinkRecordsSurviveWithoutClose(t *testing.T) {
	dir := t.TempDir()

	sink, err := NewTextSink(dir, testMeta(), nil)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Record("batch only", 2, []float64{1}))

	content, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, "batch only 2 1\n", string(content))
}

type failingSink struct {
	records int
	closed  bool
}

func (f *failingSink) Record(string, int, []float64) error {
	f.records++

	return errors.New("disk full")
}

func (f *failingSink) Close() error {
	f.closed = true

	return errors.New("close failed")
}

type countingSink struct {
	records int
	closed  bool
}

func (c *countingSink) Record(string, int, []float64) error {
	c.records++

	return nil
}

func (c *countingSink) Close() error {
	c.closed = true

	return nil
}

func TestMulti(t *testing.T) {
	first := &countingSink{}
	bad := &failingSink{}
	last := &countingSink{}

	m := Multi(first, bad, last)

	err := m.Record("batch only", 2, []float64{1})
	require.Error(t, err)
	assert.Equal(t, 1, first.records)
	assert.Equal(t, 1, bad.records)
	assert.Equal(t, 0, last.records, "records stop at the first failure")

	err = m.Close()
	assert.ErrorContains(t, err, "close failed")
	assert.True(t, first.closed)
	assert.True(t, bad.closed)
	assert.True(t, last.closed)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "samples.db"))
	require.NoError(t, err)
	defer store.Close()

	sink, err := store.Sink(ctx, testMeta())
	require.NoError(t, err)

	require.NoError(t, sink.Record("no batch", 0, []float64{7, 8, 9}))
	require.NoError(t, sink.Record("locations batch", 4, []float64{3, 2, 1}))
	require.NoError(t, sink.Close())

	var count int
	require.NoError(t, store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM samples`).Scan(&count))
	assert.Equal(t, 6, count)

	var sum float64
	require.NoError(t, store.DB().QueryRowContext(ctx,
		`SELECT SUM(value) FROM samples WHERE label = ? AND batch_size = ?`,
		"locations batch", 4).Scan(&sum))
	assert.Equal(t, 6.0, sum)

	var payload string
	require.NoError(t, store.DB().QueryRowContext(ctx,
		`SELECT payload FROM runs`).Scan(&payload))
	assert.Equal(t, "p4", payload)
}

func TestParseTimeUnit(t *testing.T) {
	tests := []struct {
		input string
		want  TimeUnit
	}{
		{"ns", Nanoseconds},
		{"us", Microseconds},
		{"", Microseconds},
		{"Milliseconds", Milliseconds},
	}

	for _, tt := range tests {
		got, err := ParseTimeUnit(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	_, err := ParseTimeUnit("fortnights")
	assert.Error(t, err)
}

func TestConvertTruncates(t *testing.T) {
	d := 2*time.Millisecond + 1500*time.Nanosecond

	assert.Equal(t, 2001500.0, Nanoseconds.Convert(d))
	assert.Equal(t, 2001.0, Microseconds.Convert(d))
	assert.Equal(t, 2.0, Milliseconds.Convert(d))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input uint64
		want  string
	}{
		{0, "-"},
		{512, "512 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{4 << 30, "4 GB"},
	}

	for _, tt := range tests {
		got := FormatBytes(tt.input)
		if got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	assert.False(t, strings.ContainsAny(sanitize("a/b c:d\\e"), "/ :\\"))
}
