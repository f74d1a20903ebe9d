// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

// Package postgres implements account.Store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/latchkey/latchkey/internal/account"
)

// DB is the query surface UserStore needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const insertColumns = `id, email, password_hash, password_salt, email_verified,
	verification_token, verification_token_expires,
	reset_token, reset_token_expires,
	marked_for_deletion, deletion_scheduled_at, deletion_token, deletion_token_expires,
	created_at`

const userColumns = insertColumns + `, version`

const emailConstraint = "users_email_key"

// UserStore implements account.Store using PostgreSQL.
type UserStore struct {
	db DB
}

// NewUserStore creates a new UserStore.
func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

// FindByEmail retrieves a user by normalized email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*account.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return s.one(row, "find by email")
}

// FindByVerificationToken retrieves the holder of a verification token.
func (s *UserStore) FindByVerificationToken(ctx context.Context, token string) (*account.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE verification_token = $1`, token)
	return s.one(row, "find by verification token")
}

// FindByResetToken retrieves the holder of a password reset token.
func (s *UserStore) FindByResetToken(ctx context.Context, token string) (*account.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE reset_token = $1`, token)
	return s.one(row, "find by reset token")
}

// FindByDeletionToken retrieves the holder of a deletion token.
func (s *UserStore) FindByDeletionToken(ctx context.Context, token string) (*account.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE deletion_token = $1`, token)
	return s.one(row, "find by deletion token")
}

// Insert stores a new user at version 1.
func (s *UserStore) Insert(ctx context.Context, user *account.User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (`+insertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.PasswordSalt,
		user.EmailVerified,
		user.VerificationToken,
		user.VerificationTokenExpires,
		user.ResetToken,
		user.ResetTokenExpires,
		user.MarkedForDeletion,
		user.DeletionScheduledAt,
		user.DeletionToken,
		user.DeletionTokenExpires,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == emailConstraint {
			return oops.Code("USER_EMAIL_TAKEN").
				With("email", user.Email).
				Wrap(account.ErrEmailTaken)
		}
		return oops.Code("USER_INSERT_FAILED").
			With("operation", "insert user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	user.Version = 1
	return nil
}

// Save overwrites every mutable column of a user read at user.Version.
// A concurrent write in between makes it fail with account.ErrStale.
func (s *UserStore) Save(ctx context.Context, user *account.User) error {
	result, err := s.db.Exec(ctx, `
		UPDATE users SET
			email = $2,
			password_hash = $3,
			password_salt = $4,
			email_verified = $5,
			verification_token = $6,
			verification_token_expires = $7,
			reset_token = $8,
			reset_token_expires = $9,
			marked_for_deletion = $10,
			deletion_scheduled_at = $11,
			deletion_token = $12,
			deletion_token_expires = $13,
			version = version + 1
		WHERE id = $1 AND version = $14
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.PasswordSalt,
		user.EmailVerified,
		user.VerificationToken,
		user.VerificationTokenExpires,
		user.ResetToken,
		user.ResetTokenExpires,
		user.MarkedForDeletion,
		user.DeletionScheduledAt,
		user.DeletionToken,
		user.DeletionTokenExpires,
		user.Version,
	)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_STALE").
			With("id", user.ID.String()).
			With("version", user.Version).
			Wrap(account.ErrStale)
	}
	user.Version++
	return nil
}

// Remove deletes a user.
func (s *UserStore) Remove(ctx context.Context, user *account.User) error {
	result, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID.String())
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound("id", user.ID.String())
	}
	return nil
}

// ExistsByEmail reports whether the email is registered.
func (s *UserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, oops.Code("USER_EXISTS_FAILED").
			With("operation", "exists by email").
			Wrap(err)
	}
	return exists, nil
}

// ConsumeVerificationToken verifies the holder of a live verification token.
func (s *UserStore) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*account.User, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users SET
			email_verified = TRUE,
			verification_token = NULL,
			verification_token_expires = NULL,
			version = version + 1
		WHERE verification_token = $1
		  AND verification_token_expires > $2
		  AND NOT email_verified
		RETURNING `+userColumns,
		token, now,
	)
	return s.one(row, "consume verification token")
}

// ConsumeResetToken replaces the password of the holder of a live reset token.
func (s *UserStore) ConsumeResetToken(ctx context.Context, token string, now time.Time, hash, salt []byte) (*account.User, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users SET
			password_hash = $3,
			password_salt = $4,
			reset_token = NULL,
			reset_token_expires = NULL,
			version = version + 1
		WHERE reset_token = $1
		  AND reset_token_expires > $2
		RETURNING `+userColumns,
		token, now, hash, salt,
	)
	return s.one(row, "consume reset token")
}

// ConsumeDeletionToken deletes the marked holder of a live deletion token.
func (s *UserStore) ConsumeDeletionToken(ctx context.Context, token string, now time.Time) (*account.User, error) {
	row := s.db.QueryRow(ctx, `
		DELETE FROM users
		WHERE deletion_token = $1
		  AND deletion_token_expires > $2
		  AND marked_for_deletion
		RETURNING `+userColumns,
		token, now,
	)
	return s.one(row, "consume deletion token")
}

// one scans a single row, mapping pgx.ErrNoRows to account.ErrNotFound.
func (s *UserStore) one(row pgx.Row, operation string) (*account.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("operation", operation)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").
			With("operation", operation).
			Wrap(err)
	}
	return user, nil
}

func notFound(key string, value any) error {
	return oops.Code("USER_NOT_FOUND").With(key, value).Wrap(account.ErrNotFound)
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*account.User, error) {
	var (
		idStr string
		u     account.User
	)
	err := row.Scan(
		&idStr,
		&u.Email,
		&u.PasswordHash,
		&u.PasswordSalt,
		&u.EmailVerified,
		&u.VerificationToken,
		&u.VerificationTokenExpires,
		&u.ResetToken,
		&u.ResetTokenExpires,
		&u.MarkedForDeletion,
		&u.DeletionScheduledAt,
		&u.DeletionToken,
		&u.DeletionTokenExpires,
		&u.CreatedAt,
		&u.Version,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	u.ID = id
	return &u, nil
}

// Compile-time interface check.
var _ account.Store = (*UserStore)(nil)
