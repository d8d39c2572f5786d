// Package db provides PostgreSQL storage for users, jobs, embeddings,
// alerts and pipeline runs. Vectors are stored in pgvector columns.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
	// dims is the expected embedding length; zero disables the check.
	dims int
}

// Connect establishes a connection pool to the database. Every connection
// registers the pgvector types. dims is the embedding dimensionality
// enforced on write (zero accepts any length).
func Connect(ctx context.Context, databaseURL string, dims int) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, &PersistenceError{Op: "parse database URL", Cause: err}
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &PersistenceError{Op: "connect to database", Cause: err}
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &PersistenceError{Op: "ping database", Cause: err}
	}

	return &DB{pool: pool, dims: dims}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Dimensions returns the enforced embedding length.
func (db *DB) Dimensions() int {
	return db.dims
}
