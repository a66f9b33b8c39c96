package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite is a Store backed by a single SQLite table of (key, value) rows.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path, ensures the data
// directory exists, and runs schema migrations.
func OpenSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL for concurrent read/write access, busy_timeout so writers wait
	// instead of returning SQLITE_BUSY, synchronous=NORMAL is safe with WAL.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &SQLite{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS resources (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`)
	return err
}

// Get returns the raw JSON document stored at key.
func (s *SQLite) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM resources WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("storage: key %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(value), nil
}

// Put upserts the raw JSON document at key.
func (s *SQLite) Put(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO resources (key, value) VALUES (?, ?)`,
		key, string(value))
	return err
}

// List returns every key under opts.Prefix in ascending key order. With
// opts.Stream the result is a live JSON-array byte stream fed row by row;
// otherwise the collection is buffered.
func (s *SQLite) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	query := `SELECT key, value FROM resources WHERE key LIKE ? || '%' ORDER BY key`
	rows, err := s.db.QueryContext(ctx, query, opts.Prefix)
	if err != nil {
		return ListResult{}, err
	}

	if opts.Stream {
		return StreamedList(streamRows(rows, opts.Values)), nil
	}

	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return ListResult{}, err
		}
		e := Entry{Key: key}
		if opts.Values {
			e.Value = json.RawMessage(value)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}
	return BufferedList(entries), nil
}

// streamRows writes the rows out as a JSON array through a pipe. A row error
// mid-stream closes the pipe with that error; bytes already written stay
// written, matching the forward-regardless contract of list streaming.
func streamRows(rows *sql.Rows, values bool) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		defer rows.Close()
		if _, err := pw.Write([]byte{'['}); err != nil {
			pw.CloseWithError(err)
			return
		}
		enc := json.NewEncoder(pw)
		first := true
		for rows.Next() {
			var key, value string
			if err := rows.Scan(&key, &value); err != nil {
				pw.CloseWithError(err)
				return
			}
			if !first {
				if _, err := pw.Write([]byte{','}); err != nil {
					pw.CloseWithError(err)
					return
				}
			}
			first = false
			var item any = key
			if values {
				item = Entry{Key: key, Value: json.RawMessage(value)}
			}
			if err := enc.Encode(item); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		if err := rows.Err(); err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := pw.Write([]byte{']'}); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()
	return pr
}

// Batch applies every op in one transaction. Either all keys become visible
// together or none do.
func (s *SQLite) Batch(ctx context.Context, ops []Op) error {
	for _, op := range ops {
		if op.Type != OpPut {
			return fmt.Errorf("storage: unsupported batch op type %q for key %s", op.Type, op.Key)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO resources (key, value) VALUES (?, ?)`,
			op.Key, string(op.Value)); err != nil {
			tx.Rollback()
			return fmt.Errorf("storage: batch put %s: %w", op.Key, err)
		}
	}
	return tx.Commit()
}
