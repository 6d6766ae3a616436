package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLite stores one row per panel
type SQLite struct {
	db    *sql.DB
	codec *codec
	path  string
}

// NewSQLite opens or creates the database at path
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "divpanel.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS panels (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create panels table: %w", err)
	}

	c, err := newCodec()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db, codec: c, path: path}, nil
}

// Save upserts rec
func (s *SQLite) Save(ctx context.Context, rec Record) error {
	payload, err := s.codec.encode(rec.Options)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO panels(id,title,payload,created_at,updated_at) VALUES(?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET title=excluded.title, payload=excluded.payload, updated_at=excluded.updated_at`,
		rec.ID, rec.Title, payload, rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert %s: %w", rec.ID, err)
	}
	return nil
}

// Load returns the record for id
func (s *SQLite) Load(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, payload, created_at, updated_at FROM panels WHERE id = ?`, id)
	rec, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns all records ordered by creation time
func (s *SQLite) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, payload, created_at, updated_at FROM panels ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select panels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes the record for id
func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM panels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database
func (s *SQLite) Close() error {
	s.codec.close()
	return s.db.Close()
}

// Path returns the configured database path
func (s *SQLite) Path() string { return s.path }

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLite) scan(row scanner) (Record, error) {
	var (
		rec              Record
		payload          []byte
		created, updated int64
	)
	if err := row.Scan(&rec.ID, &rec.Title, &payload, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan: %w", err)
	}
	opts, err := s.codec.decode(payload)
	if err != nil {
		return rec, fmt.Errorf("panel %s: %w", rec.ID, err)
	}
	rec.Options = opts
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return rec, nil
}
