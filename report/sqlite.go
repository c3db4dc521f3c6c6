package report

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the pure Go "sqlite" driver.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	payload       TEXT    NOT NULL,
	hash_function TEXT    NOT NULL,
	m             INTEGER NOT NULL,
	n             INTEGER NOT NULL,
	repetitions   INTEGER NOT NULL,
	element_bytes INTEGER NOT NULL,
	aligned       INTEGER NOT NULL,
	time_unit     TEXT    NOT NULL,
	notes         TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS samples (
	run_id     INTEGER NOT NULL REFERENCES runs(id),
	label      TEXT    NOT NULL,
	batch_size INTEGER NOT NULL,
	repetition INTEGER NOT NULL,
	value      REAL    NOT NULL
);`

// SQLiteStore mirrors timing series into a SQLite database, one runs row per
// payload and one samples row per repetition.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle for queries.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Sink registers a run for meta and returns a Sink writing its samples.
// Closing the returned Sink leaves the store open.
func (s *SQLiteStore) Sink(ctx context.Context, meta Meta) (Sink, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (payload, hash_function, m, n, repetitions,
			element_bytes, aligned, time_unit, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.Payload, meta.HashFunction, int64(meta.M), int64(meta.N),
		meta.Repetitions, meta.ElementBytes, meta.Aligned,
		string(meta.TimeUnit), meta.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}

	return &sqliteSink{ctx: ctx, db: s.db, runID: id}, nil
}

type sqliteSink struct {
	ctx   context.Context
	db    *sql.DB
	runID int64
}

func (s *sqliteSink) Record(label string, batchSize int, times []float64) error {
	tx, err := s.db.BeginTx(s.ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(s.ctx,
		`INSERT INTO samples (run_id, label, batch_size, repetition, value)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for rep, v := range times {
		if _, err := stmt.ExecContext(s.ctx, s.runID, label, batchSize, rep, v); err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *sqliteSink) Close() error {
	return nil
}
