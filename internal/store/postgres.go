// Package store provides storage backends for FlowMentor.
//
// This file implements a PostgreSQL-backed exchange log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// AddExchange inserts an exchange row.
func (s *PostgresStore) AddExchange(ctx context.Context, e Exchange) error {
	e = prepare(e)
	providerErrors, err := encodeProviderErrors(e.ProviderErrors)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, message, emotion, zone, strategy, source, provider_errors, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Message, e.Emotion, e.Zone, e.Strategy, e.Source, providerErrors, e.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddExchange failed", "error", err, "id", e.ID)
		return fmt.Errorf("failed to insert exchange %s: %w", e.ID, err)
	}
	slog.Debug("PostgresStore AddExchange succeeded", "id", e.ID, "source", e.Source)
	return nil
}

// ListExchanges returns up to limit exchanges, newest first.
func (s *PostgresStore) ListExchanges(ctx context.Context, limit int) ([]Exchange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message, emotion, zone, strategy, source, provider_errors, created_at FROM exchanges ORDER BY created_at DESC, seq DESC LIMIT $1`,
		normalizeLimit(limit))
	if err != nil {
		slog.Error("PostgresStore ListExchanges query failed", "error", err)
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	exchanges, err := scanExchanges(rows)
	if err != nil {
		slog.Error("PostgresStore ListExchanges scan failed", "error", err)
		return nil, err
	}
	slog.Debug("PostgresStore ListExchanges succeeded", "count", len(exchanges))
	return exchanges, nil
}

// Close closes the Postgres connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
