package db

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch reports an embedding whose length differs from the
// configured model dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrEmptyEmbedding reports an attempt to store a zero-length vector.
var ErrEmptyEmbedding = errors.New("embedding is empty")

// PersistenceError is a failed database operation. Nothing written by the
// failing operation is kept.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Cause)
	}
	return "persistence error: " + e.Op
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Cause: err}
}
