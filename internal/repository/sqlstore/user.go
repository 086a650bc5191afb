package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/wastenot/internal/apperror"
	"github.com/sakif/wastenot/internal/model"
)

// UserDB is the users-table view of a DB. It implements repository.UserRepository.
type UserDB struct {
	db *DB
}

// Users returns the users repository.
func (db *DB) Users() *UserDB {
	return &UserDB{db: db}
}

const userColumns = `id, email, password_hash, full_name, avatar_url, google_id, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var googleID sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.AvatarURL,
		&googleID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.GoogleID = stringPtr(googleID)
	return &u, nil
}

// Create inserts a new account. The email is lower-cased before storing.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := u.db.now()
	user.ID = xid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.db.conn.ExecContext(ctx, u.db.q(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.Email, user.PasswordHash, user.FullName, user.AvatarURL,
		nullString(user.GoogleID), user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return &apperror.AppError{Err: apperror.ErrConflict, Message: "an account with this email already exists", Field: "email"}
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUserByID retrieves an account by its internal ID.
func (u *UserDB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := u.db.conn.QueryRowContext(ctx, u.db.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by id: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves an account by email, case-insensitively.
func (u *UserDB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := u.db.conn.QueryRowContext(ctx, u.db.q(`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return user, nil
}

func (u *UserDB) getByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	row := u.db.conn.QueryRowContext(ctx, u.db.q(`SELECT `+userColumns+` FROM users WHERE google_id = ?`), googleID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", googleID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by google id: %w", err)
	}
	return user, nil
}

// UpsertGoogle records a Google sign-in.
//
// Lookup order:
//  1. google_id matches → refresh name/avatar, keep everything else
//  2. email matches     → link google_id onto the existing password account
//  3. neither           → create an OAuth-only account (empty password hash)
//
// The user's internal ID and CreatedAt never change on an existing row.
func (u *UserDB) UpsertGoogle(ctx context.Context, user *model.User) error {
	if user.GoogleID == nil || *user.GoogleID == "" {
		return apperror.ValidationFailed("googleId", "google id is required")
	}

	existing, err := u.getByGoogleID(ctx, *user.GoogleID)
	if errors.Is(err, apperror.ErrNotFound) {
		existing, err = u.GetUserByEmail(ctx, user.Email)
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return u.Create(ctx, user)
	}
	if err != nil {
		return err
	}

	if user.FullName != "" {
		existing.FullName = user.FullName
	}
	if user.AvatarURL != "" {
		existing.AvatarURL = user.AvatarURL
	}
	existing.GoogleID = user.GoogleID
	existing.UpdatedAt = u.db.now()

	_, err = u.db.conn.ExecContext(ctx, u.db.q(`
		UPDATE users SET full_name = ?, avatar_url = ?, google_id = ?, updated_at = ?
		WHERE id = ?`),
		existing.FullName, existing.AvatarURL, nullString(existing.GoogleID), existing.UpdatedAt, existing.ID,
	)
	if err != nil {
		return fmt.Errorf("updating google user: %w", err)
	}

	*user = *existing
	return nil
}
