package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// sqliteSchema keeps raw bytes and the clean JSON document side by side.
// counters is the explicit per-category ordinal counter; it is only ever
// touched inside the Save transaction.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS counters (
	category TEXT PRIMARY KEY,
	next     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
	id           TEXT PRIMARY KEY,
	category     TEXT NOT NULL,
	idx          INTEGER NOT NULL,
	filename     TEXT NOT NULL,
	sha256       TEXT NOT NULL,
	version      INTEGER NOT NULL DEFAULT 1,
	ingested_at  TIMESTAMP NOT NULL,
	skipped_rows INTEGER NOT NULL DEFAULT 0,
	cell_errors  INTEGER NOT NULL DEFAULT 0,
	failure      TEXT NOT NULL DEFAULT '',
	raw          BLOB NOT NULL,
	clean        TEXT,
	UNIQUE (category, idx)
);

CREATE INDEX IF NOT EXISTS entries_content ON entries (category, filename, sha256);
`

// SQLiteStore is the default archive backend: a single file on disk, which
// matches the single-operator batch workflow of the CLI.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) an archive database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("archive: opening sqlite db %s: %w", path, err)
	}
	// A single writer keeps the counter read-modify-write serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: initializing schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Save(ctx context.Context, e *Entry, raw, clean []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive: begin save: %w", err)
	}
	defer tx.Rollback()

	// Read-modify-write on the counter row, all inside this transaction.
	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT next FROM counters WHERE category = ?`, string(e.Category)).Scan(&next)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		next = 0
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO counters (category, next) VALUES (?, 1)`, string(e.Category)); err != nil {
			return fmt.Errorf("archive: creating counter: %w", err)
		}
	case err != nil:
		return fmt.Errorf("archive: reading counter: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE counters SET next = next + 1 WHERE category = ?`, string(e.Category)); err != nil {
			return fmt.Errorf("archive: advancing counter: %w", err)
		}
	}

	e.Index = next
	var cleanVal any
	if clean != nil {
		cleanVal = string(clean)
	}
	e.HasClean = clean != nil

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries
			(id, category, idx, filename, sha256, version, ingested_at,
			 skipped_rows, cell_errors, failure, raw, clean)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), string(e.Category), e.Index, e.Filename, e.SHA256,
		e.Version, e.IngestedAt, e.SkippedRows, e.CellErrors, e.Failure,
		raw, cleanVal,
	)
	if err != nil {
		return fmt.Errorf("archive: inserting entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive: committing save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindDuplicate(ctx context.Context, cat Category, filename, sha256 string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, category, idx, filename, sha256, version, ingested_at,
		       skipped_rows, cell_errors, failure, clean IS NOT NULL
		FROM entries
		WHERE category = ? AND filename = ? AND sha256 = ?
		ORDER BY version DESC LIMIT 1`,
		string(cat), filename, sha256)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (s *SQLiteStore) Get(ctx context.Context, cat Category, index int) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, category, idx, filename, sha256, version, ingested_at,
		       skipped_rows, cell_errors, failure, clean IS NOT NULL
		FROM entries WHERE category = ? AND idx = ?`,
		string(cat), index)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (s *SQLiteStore) Raw(ctx context.Context, cat Category, index int) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT raw FROM entries WHERE category = ? AND idx = ?`,
		string(cat), index).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: reading raw blob: %w", err)
	}
	return raw, nil
}

func (s *SQLiteStore) Clean(ctx context.Context, cat Category, index int) ([]byte, error) {
	var clean sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT clean FROM entries WHERE category = ? AND idx = ?`,
		string(cat), index).Scan(&clean)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: reading clean document: %w", err)
	}
	if !clean.Valid {
		return nil, ErrNotFound
	}
	return []byte(clean.String), nil
}

func (s *SQLiteStore) List(ctx context.Context, cat Category) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, idx, filename, sha256, version, ingested_at,
		       skipped_rows, cell_errors, failure, clean IS NOT NULL
		FROM entries WHERE category = ? ORDER BY idx`,
		string(cat))
	if err != nil {
		return nil, fmt.Errorf("archive: listing entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e        Entry
		id       string
		cat      string
		ingested time.Time
	)
	err := row.Scan(&id, &cat, &e.Index, &e.Filename, &e.SHA256, &e.Version,
		&ingested, &e.SkippedRows, &e.CellErrors, &e.Failure, &e.HasClean)
	if err != nil {
		return nil, err
	}

	e.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("archive: corrupt entry id %q: %w", id, err)
	}
	e.Category = Category(cat)
	e.IngestedAt = ingested
	return &e, nil
}
