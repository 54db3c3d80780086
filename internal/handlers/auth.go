package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dazeez1/notes-app/internal/services"
	"github.com/dazeez1/notes-app/internal/store"
	"github.com/dazeez1/notes-app/types"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "notes-app"
	tokenAudience = "notes-app-client"
)

var (
	errTokenExpired   = errors.New("token expired")
	errTokenMalformed = errors.New("token malformed")
)

// Claims are the JWT claims minted at login and verification.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
}

// AuthHandler provides registration, OTP verification, and login.
type AuthHandler struct {
	userService *services.UserService
	secret      []byte
	tokenTTL    time.Duration
	logger      *slog.Logger
	devMode     bool
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, secret []byte, tokenTTL time.Duration, logger *slog.Logger, devMode bool) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		secret:      secret,
		tokenTTL:    tokenTTL,
		logger:      logger,
		devMode:     devMode,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Post("/signup", handler.Signup)
	r.Post("/verify-otp", handler.VerifyOTP)
	r.Post("/resend-otp", handler.ResendOTP)
	r.Post("/login", handler.Login)
	r.With(authMiddleware).Get("/me", handler.Me)
}

// RequireAuth enforces bearer-token authentication. The token alone is
// not trusted: the user record is re-fetched so deactivation takes effect
// before token expiry. The resolved user lands in the request context.
func RequireAuth(userService *services.UserService, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, codeUnauthenticated, "missing or invalid authorization header")
				return
			}

			userID, err := resolveToken(tokenString, secret)
			if err != nil {
				if errors.Is(err, errTokenExpired) {
					writeError(w, http.StatusUnauthorized, codeTokenExpired, "token expired")
					return
				}
				writeError(w, http.StatusUnauthorized, codeTokenMalformed, "invalid token")
				return
			}

			user, err := userService.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unknown account")
					return
				}
				writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
				return
			}
			if !user.IsActive {
				writeError(w, http.StatusUnauthorized, codeAccountDeactivated, "account deactivated")
				return
			}

			ctx := context.WithValue(r.Context(), contextUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"emailAddress"`
	Phone    string `json:"phoneNumber"`
	Password string `json:"password"`
}

type VerifyOTPRequest struct {
	Email string `json:"emailAddress"`
	OTP   string `json:"otpCode"`
}

type ResendOTPRequest struct {
	Email string `json:"emailAddress"`
}

type LoginRequest struct {
	Email    string `json:"emailAddress"`
	Password string `json:"password"`
}

// Signup registers an unverified account and triggers OTP delivery.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	user, otpSent, err := h.userService.Signup(r.Context(), services.SignupInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}

	message := "account created; check your email for the verification code"
	if !otpSent {
		message = "account created; code delivery failed, request a new one"
	}
	writeSuccess(w, http.StatusCreated, message, map[string]any{
		"user":    user,
		"otpSent": otpSent,
	})
}

// VerifyOTP validates the emailed code and returns a session token.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	user, err := h.userService.VerifyEmail(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}

	token, err := issueToken(user, h.secret, h.tokenTTL)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to create token")
		return
	}

	writeSuccess(w, http.StatusOK, "email verified", map[string]any{
		"token": token,
		"user":  user,
	})
}

// ResendOTP issues a fresh code, invalidating the previous one.
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	otpSent, err := h.userService.ResendOTP(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}

	message := "verification code sent"
	if !otpSent {
		message = "code delivery failed, try again later"
	}
	writeSuccess(w, http.StatusOK, message, map[string]any{"otpSent": otpSent})
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "emailAddress and password are required")
		return
	}

	user, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err, h.devMode)
		return
	}

	token, err := issueToken(user, h.secret, h.tokenTTL)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to create token")
		return
	}

	writeSuccess(w, http.StatusOK, "login successful", map[string]any{
		"token": token,
		"user":  user,
	})
}

// Me returns the profile of the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unauthorized")
		return
	}
	writeSuccess(w, http.StatusOK, "profile", map[string]any{"user": user})
}

func issueToken(user types.User, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:         user.Email,
		EmailVerified: user.IsEmailVerified,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// resolveToken checks signature, shape, and expiry, and returns the
// subject user ID. Expired and malformed tokens fail distinctly.
func resolveToken(tokenString string, secret []byte) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (any, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, errTokenExpired
		}
		return 0, errTokenMalformed
	}
	if !token.Valid {
		return 0, errTokenMalformed
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || userID < 1 {
		return 0, errTokenMalformed
	}
	return userID, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
