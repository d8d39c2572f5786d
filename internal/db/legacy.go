package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// LegacyResult reports the conversion of one table's embedding column.
type LegacyResult struct {
	Table string
	// Converted values now live in the vector column.
	Converted int
	// Dropped values were unreadable or had the wrong length. CV rows are
	// deleted so the next run recomputes them; job embeddings become NULL.
	Dropped int
	// AlreadyVector is set when there was nothing to convert.
	AlreadyVector bool
}

type legacyTable struct {
	name     string
	key      string
	required bool
}

var legacyTables = []legacyTable{
	{name: "cv_embeddings", key: "user_id", required: true},
	{name: "jobs", key: "id"},
}

type legacyRow struct {
	key  int64
	text *string
}

type legacyValue struct {
	key       int64
	embedding []float32
}

// MigrateLegacyEmbeddings converts embedding columns still stored as JSON
// text into pgvector columns. Each table is converted in its own
// transaction; tables already using vector are left alone.
func (db *DB) MigrateLegacyEmbeddings(ctx context.Context) ([]LegacyResult, error) {
	results := make([]LegacyResult, 0, len(legacyTables))
	for _, t := range legacyTables {
		res, err := db.migrateLegacyColumn(ctx, t)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (db *DB) migrateLegacyColumn(ctx context.Context, t legacyTable) (LegacyResult, error) {
	res := LegacyResult{Table: t.name}
	op := "migrate " + t.name + " embeddings"

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return res, persistErr(op, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var dataType string
	err = tx.QueryRow(ctx,
		`SELECT data_type FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1 AND column_name = 'embedding'`,
		t.name,
	).Scan(&dataType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return res, &PersistenceError{Op: op, Cause: fmt.Errorf("table %s has no embedding column", t.name)}
		}
		return res, persistErr(op, err)
	}
	if dataType != "text" {
		res.AlreadyVector = true
		return res, nil
	}

	table := pgx.Identifier{t.name}.Sanitize()
	key := pgx.Identifier{t.key}.Sanitize()

	rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT %s, embedding FROM %s`, key, table))
	if err != nil {
		return res, persistErr(op, err)
	}
	legacy, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (legacyRow, error) {
		var r legacyRow
		err := row.Scan(&r.key, &r.text)
		return r, err
	})
	if err != nil {
		return res, persistErr(op, err)
	}

	values, dropped := db.decodeLegacyRows(legacy)
	res.Converted = len(values)
	res.Dropped = dropped

	if _, err := tx.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN embedding_vec vector`, table)); err != nil {
		return res, persistErr(op, err)
	}
	update := fmt.Sprintf(`UPDATE %s SET embedding_vec = $1 WHERE %s = $2`, table, key)
	for _, v := range values {
		if _, err := tx.Exec(ctx, update, toVector(v.embedding), v.key); err != nil {
			return res, persistErr(op, err)
		}
	}

	var stmts []string
	if t.required {
		stmts = append(stmts, fmt.Sprintf(`DELETE FROM %s WHERE embedding_vec IS NULL`, table))
	}
	stmts = append(stmts,
		fmt.Sprintf(`ALTER TABLE %s DROP COLUMN embedding`, table),
		fmt.Sprintf(`ALTER TABLE %s RENAME COLUMN embedding_vec TO embedding`, table),
	)
	if t.required {
		stmts = append(stmts, fmt.Sprintf(`ALTER TABLE %s ALTER COLUMN embedding SET NOT NULL`, table))
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return res, persistErr(op, err)
		}
	}
	return res, persistErr(op, tx.Commit(ctx))
}

// decodeLegacyRows keeps the rows whose JSON text decodes to an embedding
// of the configured length. Empty or NULL text is not counted as dropped.
func (db *DB) decodeLegacyRows(rows []legacyRow) ([]legacyValue, int) {
	var (
		values  []legacyValue
		dropped int
	)
	for _, r := range rows {
		if r.text == nil {
			continue
		}
		vec, err := DecodeLegacyEmbedding(*r.text)
		if err != nil {
			dropped++
			continue
		}
		if len(vec) == 0 {
			continue
		}
		if db.checkDims(vec) != nil {
			dropped++
			continue
		}
		values = append(values, legacyValue{key: r.key, embedding: vec})
	}
	return values, dropped
}
