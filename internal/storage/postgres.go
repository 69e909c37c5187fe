// Package storage implements the Postgres-backed persistence layer: the
// unique-ID ledger and the authorization audit log.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing for the authorization path: every request runs at most two
// short single-statement queries, so a handful of connections goes a long
// way even under gateway replication.
const (
	maxConns        = 10
	minConns        = 2
	maxConnLifetime = 30 * time.Minute
	connectTimeout  = 5 * time.Second
)

// Store owns the connection pool shared by the ledger and audit repositories.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies the connection before returning.
func New(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = maxConns
	config.MinConns = minConns
	config.MaxConnLifetime = maxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
