package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/dazeez1/notes-app/types"
)

var otpMax = big.NewInt(1000000)

// IssueOTP puts a fresh 6-digit verification code on the user record,
// replacing any pending one, and returns the plaintext code. Only the
// caller may transmit it; it is never exposed through the API. The caller
// is responsible for persisting the record.
func IssueOTP(user *types.User, now time.Time, ttl time.Duration) (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	expiresAt := now.Add(ttl)
	user.OTP = &code
	user.OTPExpiresAt = &expiresAt
	return code, nil
}

// VerifyOTP reports whether the candidate code is acceptable: a pending
// code exists, the clock has not passed its expiry, and the candidate is
// an exact string match. At the exact expiry instant the code still
// verifies; only now > expiry rejects. VerifyOTP never mutates the record;
// clearing state is MarkVerified's job.
func VerifyOTP(user types.User, candidate string, now time.Time) bool {
	if user.OTP == nil || user.OTPExpiresAt == nil {
		return false
	}
	if now.After(*user.OTPExpiresAt) {
		return false
	}
	return *user.OTP == candidate
}

// MarkVerified flips the record to verified and clears the pending code.
// Terminal: once verified, issue and resend are rejected.
func MarkVerified(user *types.User) {
	user.IsEmailVerified = true
	user.OTP = nil
	user.OTPExpiresAt = nil
}
