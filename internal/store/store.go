// Package store provides storage backends for the FlowMentor exchange log.
//
// The exchange log is write-only analytics: the chat pipeline records one
// Exchange per answered request and never reads it back.
package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Driver names returned by DetectDSNType.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Listing limits for ListExchanges.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
	// DefaultMemoryCapacity bounds the in-memory store.
	DefaultMemoryCapacity = 1000
)

// Exchange is one answered chat request.
type Exchange struct {
	ID             string    `json:"id"`
	Message        string    `json:"message"`
	Emotion        string    `json:"emotion"`
	Zone           string    `json:"zone"`
	Strategy       string    `json:"strategy"`
	Source         string    `json:"source"`
	ProviderErrors []string  `json:"provider_errors,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is implemented by every exchange log backend. Implementations are safe
// for concurrent use.
type Store interface {
	// AddExchange records an exchange. A missing ID or CreatedAt is filled in.
	AddExchange(ctx context.Context, e Exchange) error
	// ListExchanges returns up to limit exchanges, newest first.
	ListExchanges(ctx context.Context, limit int) ([]Exchange, error)
	Close() error
}

// Opts holds configuration for store backends.
type Opts struct {
	DSN      string
	Capacity int
}

// Option configures a store backend.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithCapacity bounds the number of exchanges kept by the in-memory store.
func WithCapacity(n int) Option {
	return func(o *Opts) { o.Capacity = n }
}

// DetectDSNType returns the database driver implied by dsn: postgres for URLs
// and keyword DSNs, sqlite3 for anything else.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Open returns the backend selected by dsn: in-memory when empty, otherwise
// PostgreSQL or SQLite per DetectDSNType.
func Open(dsn string) (Store, error) {
	if dsn == "" {
		slog.Info("store.Open: no DSN configured, using in-memory exchange log")
		return NewInMemoryStore(), nil
	}
	switch DetectDSNType(dsn) {
	case DriverPostgres:
		slog.Info("store.Open: using Postgres exchange log")
		return NewPostgresStore(WithPostgresDSN(dsn))
	default:
		slog.Info("store.Open: using SQLite exchange log", "path", dsn)
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}

// normalizeLimit clamps a requested listing size to [1, MaxListLimit].
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// prepare fills in the generated fields of e.
func prepare(e Exchange) Exchange {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

// InMemoryStore keeps the most recent exchanges in memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	exchanges []Exchange
	capacity  int
}

// NewInMemoryStore creates an in-memory store. The default capacity is DefaultMemoryCapacity.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	cfg := Opts{Capacity: DefaultMemoryCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultMemoryCapacity
	}
	return &InMemoryStore{capacity: cfg.Capacity}
}

// AddExchange appends e, evicting the oldest exchange when full.
func (s *InMemoryStore) AddExchange(_ context.Context, e Exchange) error {
	e = prepare(e)
	e.ProviderErrors = append([]string(nil), e.ProviderErrors...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges, e)
	if over := len(s.exchanges) - s.capacity; over > 0 {
		s.exchanges = append(s.exchanges[:0:0], s.exchanges[over:]...)
	}
	return nil
}

// ListExchanges returns up to limit exchanges, newest first.
func (s *InMemoryStore) ListExchanges(_ context.Context, limit int) ([]Exchange, error) {
	limit = normalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(limit, len(s.exchanges))
	out := make([]Exchange, 0, n)
	for i := len(s.exchanges) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.exchanges[i])
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
