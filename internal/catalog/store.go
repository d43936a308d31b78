// Package catalog provides the Postgres-backed artifact catalog used
// for querying collected evidence across runs.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/laruecivic/civic-intel/internal/artifact"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store upserts artifacts into Postgres keyed by artifact id.
type Store struct {
	pool  execCloser
	table string
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "artifacts"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "artifacts"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateSchema creates the catalog table and indexes if absent.
func (s *Store) CreateSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id TEXT PRIMARY KEY,
	source_kind TEXT NOT NULL,
	source_value TEXT NOT NULL,
	retrieved_at TEXT NOT NULL,
	title TEXT,
	content_type TEXT,
	body_text TEXT,
	tags_json JSONB NOT NULL,
	raw_json JSONB NOT NULL,
	inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_retrieved_at ON %[1]s (retrieved_at)`, s.table)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create catalog schema: %w", err)
	}
	return nil
}

// Upsert inserts or replaces the catalog row for a. The raw document is
// kept alongside the extracted columns so later fields survive reloads.
func (s *Store) Upsert(ctx context.Context, a artifact.Artifact, raw []byte) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("catalog store is not configured")
	}
	if a.ID == "" {
		return fmt.Errorf("artifact id is required")
	}
	tagsJSON, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags for %s: %w", a.ID, err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	source_kind,
	source_value,
	retrieved_at,
	title,
	content_type,
	body_text,
	tags_json,
	raw_json
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (id) DO UPDATE SET
	source_kind = excluded.source_kind,
	source_value = excluded.source_value,
	retrieved_at = excluded.retrieved_at,
	title = excluded.title,
	content_type = excluded.content_type,
	body_text = excluded.body_text,
	tags_json = excluded.tags_json,
	raw_json = excluded.raw_json`, s.table)

	args := []any{
		a.ID,
		a.Source.Kind,
		a.Source.Value,
		a.Source.RetrievedAt,
		a.Title,
		a.ContentType,
		a.BodyText,
		tagsJSON,
		raw,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert artifact %s: %w", a.ID, err)
	}
	return nil
}
