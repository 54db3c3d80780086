package services

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dazeez1/notes-app/internal/mailer"
	"github.com/dazeez1/notes-app/internal/store"
	"github.com/dazeez1/notes-app/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates registration, verification, and login.
type UserService struct {
	repo   UserRepository
	mailer mailer.Mailer
	logger *slog.Logger
	otpTTL time.Duration
}

func NewUserService(repo UserRepository, m mailer.Mailer, logger *slog.Logger, otpTTL time.Duration) *UserService {
	return &UserService{
		repo:   repo,
		mailer: m,
		logger: logger,
		otpTTL: otpTTL,
	}
}

// SignupInput is the validated payload for account registration.
type SignupInput struct {
	FullName string
	Email    string
	Phone    string
	Password string
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

const minPasswordLength = 8

// Signup creates an unverified account and issues its first verification
// code. The returned bool reports whether the code was handed to the
// mailer successfully; a delivery failure leaves the account in place and
// the client recovers via resend.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (types.User, bool, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.Email = strings.TrimSpace(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)

	var violations []FieldViolation
	if n := utf8.RuneCountInString(input.FullName); n < 2 || n > 100 {
		violations = append(violations, FieldViolation{Field: "fullName", Message: "must be 2-100 characters"})
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		violations = append(violations, FieldViolation{Field: "emailAddress", Message: "must be a valid email address"})
	}
	if !phonePattern.MatchString(input.Phone) {
		violations = append(violations, FieldViolation{Field: "phoneNumber", Message: "must be 7-15 digits, optionally prefixed with +"})
	}
	if len(input.Password) < minPasswordLength {
		violations = append(violations, FieldViolation{Field: "password", Message: "must be at least 8 characters"})
	}
	if err := validationError(violations); err != nil {
		return types.User{}, false, err
	}

	// Friendly pre-check; the unique indexes still catch races.
	if _, err := s.repo.GetByEmail(ctx, input.Email); err == nil {
		return types.User{}, false, store.ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, false, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, false, err
	}

	user := types.User{
		FullName:     input.FullName,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: string(hashed),
		IsActive:     true,
	}
	code, err := IssueOTP(&user, time.Now(), s.otpTTL)
	if err != nil {
		return types.User{}, false, err
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, false, err
	}

	otpSent := true
	if err := s.mailer.SendVerificationCode(ctx, created.Email, created.FullName, code); err != nil {
		otpSent = false
		s.logger.ErrorContext(ctx, "verification mail delivery failed",
			"user_id", created.ID,
			"error", err,
		)
	}
	return created, otpSent, nil
}

// VerifyEmail validates the candidate code and, on success, performs the
// unverified-to-verified transition.
func (s *UserService) VerifyEmail(ctx context.Context, email, code string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return types.User{}, err
	}
	if user.IsEmailVerified {
		return types.User{}, ErrAlreadyVerified
	}
	if !VerifyOTP(user, strings.TrimSpace(code), time.Now()) {
		return types.User{}, ErrInvalidOTP
	}

	MarkVerified(&user)
	return s.repo.Update(ctx, user)
}

// ResendOTP replaces any pending code with a fresh one. The previous code
// stops verifying the moment the new one is persisted. Rejected once the
// email is verified.
func (s *UserService) ResendOTP(ctx context.Context, email string) (bool, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user.IsEmailVerified {
		return false, ErrAlreadyVerified
	}

	code, err := IssueOTP(&user, time.Now(), s.otpTTL)
	if err != nil {
		return false, err
	}
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return false, err
	}

	if err := s.mailer.SendVerificationCode(ctx, updated.Email, updated.FullName, code); err != nil {
		s.logger.ErrorContext(ctx, "verification mail delivery failed",
			"user_id", updated.ID,
			"error", err,
		)
		return false, nil
	}
	return true, nil
}

// Login checks the password and the account gates, then records the login
// time. Unknown email and wrong password are indistinguishable to the
// caller.
func (s *UserService) Login(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	if !user.IsEmailVerified {
		return types.User{}, ErrEmailNotVerified
	}
	if !user.IsActive {
		return types.User{}, ErrAccountDeactivated
	}

	now := time.Now()
	user.LastLoginAt = &now
	return s.repo.Update(ctx, user)
}

func (s *UserService) GetByID(ctx context.Context, id int64) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}
