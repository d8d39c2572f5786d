package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

// CreateUser inserts a subscriber. cvText may be nil.
func (db *DB) CreateUser(ctx context.Context, name, email string, cvText *string) (*User, error) {
	var u User
	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, cv_text)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, email, cv_text, created_at`,
		name, strings.ToLower(strings.TrimSpace(email)), cvText,
	).Scan(&u.ID, &u.Name, &u.Email, &u.CVText, &u.CreatedAt)
	if err != nil {
		return nil, persistErr("create user", err)
	}
	return &u, nil
}

// GetUserByEmail returns nil when no user has the address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, email, cv_text, created_at FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Name, &u.Email, &u.CVText, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistErr("get user", err)
	}
	return &u, nil
}

// UpdateCV replaces a user's CV text and drops the cached CV embedding so
// the next match pass recomputes it.
func (db *DB) UpdateCV(ctx context.Context, userID int64, cvText string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return persistErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE users SET cv_text = $1 WHERE id = $2`, cvText, userID)
	if err != nil {
		return persistErr("update cv", err)
	}
	if tag.RowsAffected() == 0 {
		return &PersistenceError{Op: "update cv", Cause: pgx.ErrNoRows}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cv_embeddings WHERE user_id = $1`, userID); err != nil {
		return persistErr("clear cv embedding", err)
	}
	return persistErr("commit cv update", tx.Commit(ctx))
}

// ListUsersWithCV returns users whose CV text is present, ordered by ID.
func (db *DB) ListUsersWithCV(ctx context.Context) ([]User, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, email, cv_text, created_at
		 FROM users
		 WHERE cv_text IS NOT NULL AND btrim(cv_text) <> ''
		 ORDER BY id`,
	)
	if err != nil {
		return nil, persistErr("list users", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CVText, &u.CreatedAt); err != nil {
			return nil, persistErr("scan user", err)
		}
		users = append(users, u)
	}
	return users, persistErr("list users", rows.Err())
}
