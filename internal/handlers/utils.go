package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dazeez1/notes-app/internal/services"
	"github.com/dazeez1/notes-app/internal/store"
	"github.com/dazeez1/notes-app/types"
	"github.com/go-chi/chi/v5"
)

// Response is the envelope every endpoint answers with. Error carries a
// stable machine-readable code when Success is false.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Stable error codes exposed to clients.
const (
	codeValidation         = "VALIDATION_ERROR"
	codeInvalidQuery       = "INVALID_QUERY"
	codeInvalidOTP         = "INVALID_OTP"
	codeAlreadyVerified    = "ALREADY_VERIFIED"
	codeConflict           = "CONFLICT"
	codeUnauthenticated    = "UNAUTHENTICATED"
	codeTokenExpired       = "TOKEN_EXPIRED"
	codeTokenMalformed     = "TOKEN_MALFORMED"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	codeAccountDeactivated = "ACCOUNT_DEACTIVATED"
	codeNotFound           = "NOT_FOUND"
	codePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	codeInternal           = "INTERNAL"
)

type contextKey string

const contextUserKey contextKey = "user"

func userFromContext(ctx context.Context) (types.User, error) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok {
		return types.User{}, errors.New("missing user")
	}
	return user, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{
		Success: false,
		Message: message,
		Error:   code,
	})
}

// writeServiceError maps domain failures to the envelope. Anything
// unrecognized is an internal error; its detail stays out of the response
// unless the server runs in dev mode.
func writeServiceError(w http.ResponseWriter, err error, devMode bool) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Message: "validation failed",
			Error:   codeValidation,
			Data:    map[string]any{"violations": validationErr.Violations},
		})
	case errors.Is(err, services.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
	case errors.Is(err, services.ErrInvalidOTP):
		writeError(w, http.StatusBadRequest, codeInvalidOTP, err.Error())
	case errors.Is(err, services.ErrAlreadyVerified):
		writeError(w, http.StatusBadRequest, codeAlreadyVerified, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials, err.Error())
	case errors.Is(err, services.ErrEmailNotVerified):
		writeError(w, http.StatusUnauthorized, codeEmailNotVerified, err.Error())
	case errors.Is(err, services.ErrAccountDeactivated):
		writeError(w, http.StatusUnauthorized, codeAccountDeactivated, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, "email or phone already registered")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	default:
		message := "internal server error"
		if devMode {
			message = err.Error()
		}
		writeError(w, http.StatusInternalServerError, codeInternal, message)
	}
}

func parsePagination(r *http.Request) (limit, skip int, err error) {
	limit = 0
	skip = 0

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, errors.New("invalid limit")
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("skip")); raw != "" {
		skip, err = strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return 0, 0, errors.New("invalid skip")
		}
	}
	return limit, skip, nil
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "ok", nil)
}
