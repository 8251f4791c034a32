// Package store provides storage backends for FlowMentor.
//
// This file implements an SQLite-backed exchange log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/BTreeMap/FlowMentor/internal/lockfile"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is an exchange log in a single SQLite file. It holds a lock
// on the file for its lifetime.
type SQLiteStore struct {
	db   *sql.DB
	lock *lockfile.Lock
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	lock, err := lockfile.Acquire(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to lock database: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		lock.Release()
		return nil, err
	}
	// SQLite serializes writers; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		lock.Release()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		lock.Release()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db, lock: lock}, nil
}

// AddExchange inserts an exchange row.
func (s *SQLiteStore) AddExchange(ctx context.Context, e Exchange) error {
	e = prepare(e)
	providerErrors, err := encodeProviderErrors(e.ProviderErrors)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, message, emotion, zone, strategy, source, provider_errors, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Message, e.Emotion, e.Zone, e.Strategy, e.Source, providerErrors, e.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddExchange failed", "error", err, "id", e.ID)
		return fmt.Errorf("failed to insert exchange %s: %w", e.ID, err)
	}
	slog.Debug("SQLiteStore AddExchange succeeded", "id", e.ID, "source", e.Source)
	return nil
}

// ListExchanges returns up to limit exchanges, newest first.
func (s *SQLiteStore) ListExchanges(ctx context.Context, limit int) ([]Exchange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message, emotion, zone, strategy, source, provider_errors, created_at FROM exchanges ORDER BY created_at DESC, seq DESC LIMIT ?`,
		normalizeLimit(limit))
	if err != nil {
		slog.Error("SQLiteStore ListExchanges query failed", "error", err)
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	exchanges, err := scanExchanges(rows)
	if err != nil {
		slog.Error("SQLiteStore ListExchanges scan failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLiteStore ListExchanges succeeded", "count", len(exchanges))
	return exchanges, nil
}

// Close closes the SQLite database connection and releases the file lock.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	} else {
		slog.Debug("SQLite database connection closed successfully")
	}
	if lerr := s.lock.Release(); lerr != nil && err == nil {
		err = lerr
	}
	return err
}
