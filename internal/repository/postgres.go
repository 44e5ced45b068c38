package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bohanco/hpimage/internal/archive"
)

// PostgresConfig controls the Postgres connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pgxPool is the slice of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store on a Postgres schema of two tables:
//
//	CREATE TABLE images (
//	    urlbase   TEXT PRIMARY KEY,
//	    name      TEXT NOT NULL,
//	    copyright TEXT NOT NULL,
//	    wp        BOOLEAN NOT NULL,
//	    vid       JSONB,
//	    available BOOLEAN NOT NULL DEFAULT FALSE
//	);
//
//	CREATE TABLE archives (
//	    id          BIGSERIAL PRIMARY KEY,
//	    market      TEXT NOT NULL,
//	    date        DATE NOT NULL,
//	    description TEXT NOT NULL,
//	    link        TEXT,
//	    hs          JSONB,
//	    msg         JSONB,
//	    image_urlbase TEXT NOT NULL REFERENCES images (urlbase),
//	    UNIQUE (market, date)
//	);
type PostgresStore struct {
	pool pgxPool
}

// NewPostgresStore connects a pool and wraps it in a PostgresStore.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPostgresStoreWithPool(pool pgxPool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const insertImageSQL = `
INSERT INTO images (urlbase, name, copyright, wp, vid, available)
VALUES ($1, $2, $3, $4, $5, FALSE)
ON CONFLICT (urlbase) DO NOTHING`

const insertArchiveSQL = `
INSERT INTO archives (market, date, description, link, hs, msg, image_urlbase)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (market, date) DO NOTHING`

// Insert writes the records and their images in one transaction. Images
// are deduplicated on urlbase: an existing row keeps its readiness state,
// since several markets routinely report the same image per cycle.
func (s *PostgresStore) Insert(ctx context.Context, records []*archive.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if !seen[rec.Image.URLBase] {
			seen[rec.Image.URLBase] = true
			_, err = tx.Exec(ctx, insertImageSQL,
				rec.Image.URLBase,
				rec.Image.Name,
				rec.Image.Copyright,
				rec.Image.HighRes,
				jsonArg(rec.Image.Video),
			)
			if err != nil {
				return fmt.Errorf("insert image %s: %w", rec.Image.URLBase, err)
			}
		}
		_, err = tx.Exec(ctx, insertArchiveSQL,
			rec.Market,
			rec.Date.Format("2006-01-02"),
			rec.Description,
			textArg(rec.Link),
			jsonArg(rec.Hotspots),
			jsonArg(rec.Messages),
			rec.Image.URLBase,
		)
		if err != nil {
			return fmt.Errorf("insert archive %s %s: %w", rec.Market, rec.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// UnreadyImages returns urlbase→highRes for images not yet available.
func (s *PostgresStore) UnreadyImages(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT urlbase, wp FROM images WHERE available = FALSE`)
	if err != nil {
		return nil, fmt.Errorf("query unready images: %w", err)
	}
	defer rows.Close()

	images := make(map[string]bool)
	for rows.Next() {
		var urlBase string
		var highRes bool
		if err := rows.Scan(&urlBase, &highRes); err != nil {
			return nil, fmt.Errorf("scan unready image: %w", err)
		}
		images[urlBase] = highRes
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read unready images: %w", err)
	}
	return images, nil
}

// SetImagesReady flips the available flag for the given urlbases.
func (s *PostgresStore) SetImagesReady(ctx context.Context, urlBases []string) error {
	if len(urlBases) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE images SET available = TRUE WHERE urlbase = ANY($1)`, urlBases)
	if err != nil {
		return fmt.Errorf("set images ready: %w", err)
	}
	return nil
}

// jsonArg maps an optional raw JSON payload to a nullable jsonb argument.
func jsonArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// textArg maps an optional string to a nullable text argument.
func textArg(s string) any {
	if s == "" {
		return nil
	}
	return s
}
