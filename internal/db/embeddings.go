package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// GetCVEmbedding returns the cached CV embedding, or nil when none is
// stored.
func (db *DB) GetCVEmbedding(ctx context.Context, userID int64) ([]float32, error) {
	var v *pgvector.Vector
	err := db.pool.QueryRow(ctx,
		`SELECT embedding FROM cv_embeddings WHERE user_id = $1`,
		userID,
	).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistErr("get cv embedding", err)
	}
	return fromVector(v), nil
}

// SaveCVEmbedding stores a user's CV embedding. An existing entry is kept:
// stored embeddings are never overwritten.
func (db *DB) SaveCVEmbedding(ctx context.Context, userID int64, embedding []float32) error {
	if err := db.checkDims(embedding); err != nil {
		return &PersistenceError{Op: "save cv embedding", Cause: err}
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO cv_embeddings (user_id, embedding)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, toVector(embedding),
	)
	return persistErr("save cv embedding", err)
}
