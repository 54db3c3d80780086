package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dazeez1/notes-app/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, full_name, email, phone, password_hash, is_email_verified, is_active, email_otp, otp_expires_at, last_login_at, created_at, updated_at`

func scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.Phone,
		&user.PasswordHash,
		&user.IsEmailVerified,
		&user.IsActive,
		&user.OTP,
		&user.OTPExpiresAt,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail looks a user up case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
}

// Create inserts a new user. A duplicate email or phone yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (full_name, email, phone, password_hash, is_email_verified, is_active, email_otp, otp_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.FullName,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.IsEmailVerified,
		user.IsActive,
		user.OTP,
		user.OTPExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, mapPQError(err)
	}
	return user, nil
}

// Update writes the full user row back. OTP issuance, verification, and
// login-time bookkeeping all go through here.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET full_name = $1,
			email = $2,
			phone = $3,
			password_hash = $4,
			is_email_verified = $5,
			is_active = $6,
			email_otp = $7,
			otp_expires_at = $8,
			last_login_at = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.FullName,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.IsEmailVerified,
		user.IsActive,
		user.OTP,
		user.OTPExpiresAt,
		user.LastLoginAt,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, mapPQError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}
