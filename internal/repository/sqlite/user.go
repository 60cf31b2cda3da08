package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/devconnect/internal/apperror"
	"github.com/sakif/devconnect/internal/model"
	"github.com/sakif/devconnect/internal/repository"
)

var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the users view of the database. Get it with DB.Users().
type UserDB struct {
	conn *sql.DB
}

const userColumns = `id, name, email, avatar, password_hash, github_id, created_at, updated_at`

// Create inserts a password account. The partial unique index on email
// turns a duplicate registration into a constraint error, reported as
// Conflict.
func (db *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.Avatar,
		user.PasswordHash,
		nullableGitHubID(user.GitHubID),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("User already exists")
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}
	return nil
}

// Upsert inserts a GitHub account or refreshes its profile fields, keyed by
// github_id. On return user.ID is the stored ID either way.
func (db *UserDB) Upsert(ctx context.Context, user *model.User) error {
	if user.GitHubID == 0 {
		return fmt.Errorf("sqlite: upserting user: GitHub ID is required")
	}

	return withTx(ctx, db.conn, func(tx *sql.Tx) error {
		var existingID string
		var createdAt time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT id, created_at FROM users WHERE github_id = ?`, user.GitHubID,
		).Scan(&existingID, &createdAt)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
		}

		now := time.Now().UTC()
		user.UpdatedAt = now

		if existingID != "" {
			user.ID = existingID
			user.CreatedAt = createdAt
			_, err = tx.ExecContext(ctx,
				`UPDATE users SET name = ?, avatar = ?, updated_at = ? WHERE id = ?`,
				user.Name, user.Avatar, user.UpdatedAt, user.ID,
			)
			if err != nil {
				return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
			}
			return nil
		}

		user.ID = xid.New().String()
		user.CreatedAt = now
		user.Email = strings.ToLower(strings.TrimSpace(user.Email))
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.Name, user.Email, user.Avatar, user.PasswordHash,
			user.GitHubID, user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("User already exists")
			}
			return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
		}
		return nil
	})
}

func (db *UserDB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *UserDB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperror.NotFound("user", email)
	}

	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var githubID sql.NullInt64
	if err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Avatar, &u.PasswordHash,
		&githubID, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.GitHubID = githubID.Int64
	return &u, nil
}

func nullableGitHubID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// isUniqueViolation matches SQLite's constraint message. modernc.org/sqlite
// reports it as "constraint failed: UNIQUE constraint failed: users.email".
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
