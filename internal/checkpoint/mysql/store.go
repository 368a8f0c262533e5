// Package mysql implements a durable checkpoint.Store on MySQL using
// database/sql with the go-sql-driver.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute
	defaultPort            = 3306
	defaultTable           = "storri_checkpoints"
)

// Config is the connection configuration for the MySQL store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Table is the checkpoint table name. "" uses storri_checkpoints.
	Table string

	MaxOpenConns int
	MaxIdleConns int
}

func (c *Config) table() string {
	if c.Table == "" {
		return defaultTable
	}
	return c.Table
}

// Store is a checkpoint.Store backed by MySQL.
type Store struct {
	db    *sql.DB
	cfg   *Config
	table string
}

// New creates a Store instance (does not connect yet).
func New(cfg *Config) *Store {
	return &Store{cfg: cfg, table: cfg.table()}
}

// Connect establishes the connection pool and verifies it with a ping.
func (s *Store) Connect(ctx context.Context) error {
	db, err := buildPool(s.cfg)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return mapError("checkpoint.Connect", err)
	}
	s.db = db
	return nil
}

// Close shuts down the connection pool.
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnsureSchema creates the checkpoint table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ("+
		"name VARCHAR(255) PRIMARY KEY, "+
		"marker TEXT NOT NULL, "+
		"updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP"+
		")", s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return mapError("checkpoint.EnsureSchema", err)
	}
	return nil
}

// Save records the marker under name, replacing any previous value.
func (s *Store) Save(ctx context.Context, name, marker string) error {
	query := fmt.Sprintf("INSERT INTO %s (name, marker) VALUES (?, ?) "+
		"ON DUPLICATE KEY UPDATE marker = VALUES(marker)", s.table)
	if _, err := s.db.ExecContext(ctx, query, name, marker); err != nil {
		return mapError("checkpoint.Save", err)
	}
	return nil
}

// Load returns the marker saved under name.
func (s *Store) Load(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("SELECT marker FROM %s WHERE name = ?", s.table)
	var marker string
	if err := s.db.QueryRowContext(ctx, query, name).Scan(&marker); err != nil {
		return "", mapError("checkpoint.Load", err)
	}
	return marker, nil
}

// Delete forgets the checkpoint. Deleting a missing name is a no-op.
func (s *Store) Delete(ctx context.Context, name string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE name = ?", s.table)
	if _, err := s.db.ExecContext(ctx, query, name); err != nil {
		return mapError("checkpoint.Delete", err)
	}
	return nil
}

// buildPool configures and returns a *sql.DB with pool settings.
func buildPool(cfg *Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = defaultMaxIdleConns
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	return db, nil
}

// buildDSN constructs the MySQL DSN string.
func buildDSN(cfg *Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	// format: user:pass@tcp(host:port)/dbname?parseTime=true
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database,
	)
}
