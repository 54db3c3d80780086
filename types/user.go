package types

import "time"

// User represents an account in the system.
// It contains identity attributes, credential material, and the email
// verification state.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id" db:"id"`

	// FullName is the user's display name.
	FullName string `json:"fullName" db:"full_name"`

	// Email is the user's email address. Uniqueness is enforced
	// case-insensitively.
	Email string `json:"emailAddress" db:"email"`

	// Phone is the user's phone number. Unique across accounts.
	Phone string `json:"phoneNumber" db:"phone"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsEmailVerified is false until the user completes OTP verification.
	IsEmailVerified bool `json:"isEmailVerified" db:"is_email_verified"`

	// IsActive gates login and request authentication. Deactivating an
	// account takes effect on the next request, regardless of any token
	// still outstanding.
	IsActive bool `json:"isAccountActive" db:"is_active"`

	// OTP holds the pending email verification code. Nil outside an
	// active verification cycle.
	OTP *string `json:"-" db:"email_otp"`

	// OTPExpiresAt is the instant after which the pending code is no
	// longer accepted. Nil outside an active verification cycle.
	OTPExpiresAt *time.Time `json:"-" db:"otp_expires_at"`

	// LastLoginAt is the timestamp of the most recent successful login.
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"accountCreatedAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
