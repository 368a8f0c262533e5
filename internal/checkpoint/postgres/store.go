// Package postgres implements a durable checkpoint.Store on PostgreSQL
// using pgxpool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns    = 10
	defaultMinConns    = 2
	defaultConnTimeout = 5 * time.Second
	defaultTable       = "storri_checkpoints"
)

// Config is the connection configuration for the PostgreSQL store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "" means disable

	// Table is the checkpoint table name. "" uses storri_checkpoints.
	Table string

	MaxConns int32
	MinConns int32
}

func (c *Config) table() string {
	if c.Table == "" {
		return defaultTable
	}
	return c.Table
}

// Store is a checkpoint.Store backed by PostgreSQL.
type Store struct {
	pool  *pgxpool.Pool
	cfg   *Config
	table string
}

// New creates a Store instance (does not connect yet).
func New(cfg *Config) *Store {
	return &Store{cfg: cfg, table: cfg.table()}
}

// Connect establishes the connection pool and verifies it with a ping.
func (s *Store) Connect(ctx context.Context) error {
	pool, err := buildPool(ctx, s.cfg)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return mapError("checkpoint.Connect", err)
	}
	s.pool = pool
	return nil
}

// Close shuts down the connection pool.
func (s *Store) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// EnsureSchema creates the checkpoint table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	sql := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name       TEXT PRIMARY KEY,
		marker     TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, s.table)
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return mapError("checkpoint.EnsureSchema", err)
	}
	return nil
}

// Save records the marker under name, replacing any previous value.
func (s *Store) Save(ctx context.Context, name, marker string) error {
	sql := fmt.Sprintf(`INSERT INTO %s (name, marker, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET marker = EXCLUDED.marker, updated_at = now()`, s.table)
	if _, err := s.pool.Exec(ctx, sql, name, marker); err != nil {
		return mapError("checkpoint.Save", err)
	}
	return nil
}

// Load returns the marker saved under name.
func (s *Store) Load(ctx context.Context, name string) (string, error) {
	sql := fmt.Sprintf(`SELECT marker FROM %s WHERE name = $1`, s.table)
	var marker string
	if err := s.pool.QueryRow(ctx, sql, name).Scan(&marker); err != nil {
		return "", mapError("checkpoint.Load", err)
	}
	return marker, nil
}

// Delete forgets the checkpoint. Deleting a missing name is a no-op.
func (s *Store) Delete(ctx context.Context, name string) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, s.table)
	if _, err := s.pool.Exec(ctx, sql, name); err != nil {
		return mapError("checkpoint.Delete", err)
	}
	return nil
}

// buildPool creates a pgxpool from the given config.
func buildPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	poolCfg.MaxConns = withDefault(cfg.MaxConns, defaultMaxConns)
	poolCfg.MinConns = withDefault(cfg.MinConns, defaultMinConns)
	poolCfg.MaxConnIdleTime = defaultConnTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, mapError("checkpoint.Connect", err)
	}
	return pool, nil
}

// buildDSN constructs the postgres connection string.
func buildDSN(cfg *Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.User, cfg.Password, cfg.Database, sslMode,
	)
}

// withDefault returns val if non-zero, otherwise def.
func withDefault(val, def int32) int32 {
	if val == 0 {
		return def
	}
	return val
}
