package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS counters (
	category TEXT PRIMARY KEY,
	next     BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
	id           UUID PRIMARY KEY,
	category     TEXT NOT NULL,
	idx          BIGINT NOT NULL,
	filename     TEXT NOT NULL,
	sha256       TEXT NOT NULL,
	version      INTEGER NOT NULL DEFAULT 1,
	ingested_at  TIMESTAMPTZ NOT NULL,
	skipped_rows INTEGER NOT NULL DEFAULT 0,
	cell_errors  INTEGER NOT NULL DEFAULT 0,
	failure      TEXT NOT NULL DEFAULT '',
	raw          BYTEA NOT NULL,
	clean        JSONB,
	UNIQUE (category, idx)
);

CREATE INDEX IF NOT EXISTS entries_content ON entries (category, filename, sha256);
`

// PostgresStore is the archive backend for server deployments where several
// operators share one archive.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to the database and ensures the schema exists.
func OpenPostgres(ctx context.Context, url string, maxConns int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("archive: parsing database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("archive: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: initializing schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, e *Entry, raw, clean []byte) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("archive: begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	// Atomic increment of the per-category counter; the upsert returns the
	// index being assigned to this entry.
	var next int
	err = tx.QueryRow(ctx, `
		INSERT INTO counters (category, next) VALUES ($1, 1)
		ON CONFLICT (category) DO UPDATE SET next = counters.next + 1
		RETURNING next - 1`,
		string(e.Category)).Scan(&next)
	if err != nil {
		return fmt.Errorf("archive: advancing counter: %w", err)
	}

	e.Index = next
	e.HasClean = clean != nil

	_, err = tx.Exec(ctx, `
		INSERT INTO entries
			(id, category, idx, filename, sha256, version, ingested_at,
			 skipped_rows, cell_errors, failure, raw, clean)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, string(e.Category), e.Index, e.Filename, e.SHA256,
		e.Version, e.IngestedAt, e.SkippedRows, e.CellErrors, e.Failure,
		raw, clean,
	)
	if err != nil {
		return fmt.Errorf("archive: inserting entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("archive: committing save: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindDuplicate(ctx context.Context, cat Category, filename, sha256 string) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, category, idx, filename, sha256, version, ingested_at,
		       skipped_rows, cell_errors, failure, clean IS NOT NULL
		FROM entries
		WHERE category = $1 AND filename = $2 AND sha256 = $3
		ORDER BY version DESC LIMIT 1`,
		string(cat), filename, sha256)

	e, err := scanPgEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (s *PostgresStore) Get(ctx context.Context, cat Category, index int) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, category, idx, filename, sha256, version, ingested_at,
		       skipped_rows, cell_errors, failure, clean IS NOT NULL
		FROM entries WHERE category = $1 AND idx = $2`,
		string(cat), index)

	e, err := scanPgEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (s *PostgresStore) Raw(ctx context.Context, cat Category, index int) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT raw FROM entries WHERE category = $1 AND idx = $2`,
		string(cat), index).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: reading raw blob: %w", err)
	}
	return raw, nil
}

func (s *PostgresStore) Clean(ctx context.Context, cat Category, index int) ([]byte, error) {
	var clean []byte
	err := s.pool.QueryRow(ctx,
		`SELECT clean FROM entries WHERE category = $1 AND idx = $2`,
		string(cat), index).Scan(&clean)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: reading clean document: %w", err)
	}
	if clean == nil {
		return nil, ErrNotFound
	}
	return clean, nil
}

func (s *PostgresStore) List(ctx context.Context, cat Category) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, category, idx, filename, sha256, version, ingested_at,
		       skipped_rows, cell_errors, failure, clean IS NOT NULL
		FROM entries WHERE category = $1 ORDER BY idx`,
		string(cat))
	if err != nil {
		return nil, fmt.Errorf("archive: listing entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanPgEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanPgEntry(row pgx.Row) (*Entry, error) {
	var (
		e   Entry
		id  uuid.UUID
		cat string
	)
	err := row.Scan(&id, &cat, &e.Index, &e.Filename, &e.SHA256, &e.Version,
		&e.IngestedAt, &e.SkippedRows, &e.CellErrors, &e.Failure, &e.HasClean)
	if err != nil {
		return nil, err
	}
	e.ID = id
	e.Category = Category(cat)
	return &e, nil
}
