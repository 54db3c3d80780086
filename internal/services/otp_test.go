package services

import (
	"testing"
	"time"

	"github.com/dazeez1/notes-app/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueOTPSetsCodeAndExpiry(t *testing.T) {
	user := types.User{}
	now := time.Now()

	code, err := IssueOTP(&user, now, 10*time.Minute)
	require.NoError(t, err)

	require.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "code %q is not numeric", code)
	}
	require.NotNil(t, user.OTP)
	require.NotNil(t, user.OTPExpiresAt)
	assert.Equal(t, code, *user.OTP)
	assert.True(t, user.OTPExpiresAt.Equal(now.Add(10*time.Minute)))
}

func TestIssueOTPOverwritesPendingCode(t *testing.T) {
	user := types.User{}
	now := time.Now()

	first, err := IssueOTP(&user, now, 10*time.Minute)
	require.NoError(t, err)
	second, err := IssueOTP(&user, now.Add(time.Minute), 10*time.Minute)
	require.NoError(t, err)

	assert.False(t, VerifyOTP(user, first, now.Add(2*time.Minute)) && first != second,
		"old code must stop verifying once a new one is issued")
	assert.True(t, VerifyOTP(user, second, now.Add(2*time.Minute)))
}

func TestVerifyOTP(t *testing.T) {
	now := time.Now()
	user := types.User{}
	code, err := IssueOTP(&user, now, 10*time.Minute)
	require.NoError(t, err)

	t.Run("exact match within window", func(t *testing.T) {
		assert.True(t, VerifyOTP(user, code, now.Add(5*time.Minute)))
	})

	t.Run("wrong code", func(t *testing.T) {
		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}
		assert.False(t, VerifyOTP(user, wrong, now.Add(5*time.Minute)))
	})

	t.Run("no pending code", func(t *testing.T) {
		assert.False(t, VerifyOTP(types.User{}, code, now))
	})

	t.Run("at exact expiry instant", func(t *testing.T) {
		// Only now > expiry rejects; the boundary itself still verifies.
		assert.True(t, VerifyOTP(user, code, now.Add(10*time.Minute)))
	})

	t.Run("past expiry", func(t *testing.T) {
		assert.False(t, VerifyOTP(user, code, now.Add(10*time.Minute+time.Nanosecond)))
	})
}

func TestVerifyOTPHasNoSideEffects(t *testing.T) {
	now := time.Now()
	user := types.User{}
	code, err := IssueOTP(&user, now, 10*time.Minute)
	require.NoError(t, err)

	require.True(t, VerifyOTP(user, code, now))
	assert.NotNil(t, user.OTP, "validation must not clear state")
	assert.NotNil(t, user.OTPExpiresAt)
	assert.False(t, user.IsEmailVerified)
}

func TestMarkVerifiedClearsStateAndBlocksReplay(t *testing.T) {
	now := time.Now()
	user := types.User{}
	code, err := IssueOTP(&user, now, 10*time.Minute)
	require.NoError(t, err)

	require.True(t, VerifyOTP(user, code, now))
	MarkVerified(&user)

	assert.True(t, user.IsEmailVerified)
	assert.Nil(t, user.OTP)
	assert.Nil(t, user.OTPExpiresAt)
	assert.False(t, VerifyOTP(user, code, now), "replay after verification must fail")
}
