package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"spcs.org/internal/auth"
	"spcs.org/internal/complaint"
	"spcs.org/internal/geo"
	"spcs.org/internal/migrate"
	"spcs.org/internal/notify"
)

const pingTimeout = 5 * time.Second

// Store owns the PostgreSQL pool and hands out the per-domain stores that
// share it.
type Store struct {
	db *sql.DB
}

// Option tunes the connection pool.
type Option func(*sql.DB)

// WithMaxOpenConns caps concurrent connections.
func WithMaxOpenConns(n int) Option {
	return func(db *sql.DB) {
		if n > 0 {
			db.SetMaxOpenConns(n)
		}
	}
}

// WithMaxIdleConns caps idle connections kept in the pool.
func WithMaxIdleConns(n int) Option {
	return func(db *sql.DB) {
		if n > 0 {
			db.SetMaxIdleConns(n)
		}
	}
}

// Open connects through the pgx driver and verifies the server is reachable.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("pg: dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	for _, opt := range opts {
		opt(db)
	}
	s := New(db)
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return s, nil
}

// New wraps an existing pool.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping checks connectivity with a bounded timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Migrate applies the bundled schema.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	return migrate.NewManager(s.db).Up(ctx)
}

func (s *Store) Accounts() *auth.PGStore { return auth.NewPGStore(s.db) }

func (s *Store) Complaints() *complaint.PGStore { return complaint.NewPGStore(s.db) }

func (s *Store) Notifications() *notify.PGStore { return notify.NewPGStore(s.db) }

func (s *Store) Stations() *geo.PGStationStore { return geo.NewPGStationStore(s.db) }
