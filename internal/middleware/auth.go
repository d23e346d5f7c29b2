package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/selectphoto/server/internal/auth"
)

type contextKey string

const (
	UserIDContextKey contextKey = "user_id"
	EmailContextKey  contextKey = "email"
)

// GetUserIDFromContext retrieves the authenticated photographer's id from
// request context. Returns an empty string for anonymous requests.
func GetUserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDContextKey).(string)
	return userID
}

// GetEmailFromContext retrieves the authenticated photographer's email
func GetEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(EmailContextKey).(string)
	return email
}

// WithUserID returns a copy of ctx carrying userID
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

// RequireAuth creates middleware that accepts only requests carrying a valid
// bearer token and stores the token's user in the request context.
func RequireAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeUnauthorized(w, err)
				return
			}

			claims, err := jwtManager.Validate(tokenString)
			if err != nil {
				writeUnauthorized(w, auth.ErrInvalidToken)
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID)
			ctx = context.WithValue(ctx, EmailContextKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", auth.ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", auth.ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	message := "Invalid or expired token."
	if errors.Is(err, auth.ErrMissingToken) {
		message = "Authorization token is required."
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"message": message, "code": "unauthorized"})
}
