package db

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// toVector converts an embedding for a nullable vector column.
func toVector(embedding []float32) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}

// fromVector returns nil for a NULL column.
func fromVector(v *pgvector.Vector) []float32 {
	if v == nil {
		return nil
	}
	return v.Slice()
}

func (db *DB) checkDims(embedding []float32) error {
	if len(embedding) == 0 {
		return ErrEmptyEmbedding
	}
	if db.dims > 0 && len(embedding) != db.dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), db.dims)
	}
	return nil
}

// DecodeLegacyEmbedding reads an embedding stored as a JSON array in a
// text column by earlier deployments. Empty text decodes to nil.
// MigrateLegacyEmbeddings uses it to convert such columns.
func DecodeLegacyEmbedding(text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "null" {
		return nil, nil
	}
	var values []float64
	if err := json.Unmarshal([]byte(text), &values); err != nil {
		return nil, fmt.Errorf("failed to decode legacy embedding: %w", err)
	}
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out, nil
}
