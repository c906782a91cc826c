package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
)

type contextKey string

const UserContextKey contextKey = "user"

// RequireAuth resolves the bearer token to its owner and stores the user in
// the request context.
func RequireAuth(tokenRepo repository.APITokenRepository, userRepo repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(tokenString) == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			token, err := tokenRepo.FindByTokenHash(r.Context(), repository.HashToken(strings.TrimSpace(tokenString)))
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					slog.Error("looking up api token", "error", err)
				}
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
				return
			}

			if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Token expired")
				return
			}

			user, err := userRepo.FindByID(r.Context(), token.UserID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user.Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSubscription admits admins and users whose subscription is active
// or in trial at now.
func RequireSubscription(profileRepo repository.ProfileRepository, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user.Role == models.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			profile, err := profileRepo.FindByUserID(r.Context(), user.ID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				slog.Error("loading profile for subscription check", "user_id", user.ID, "error", err)
				writeError(w, http.StatusInternalServerError, "internal", "Failed to check subscription")
				return
			}
			if err != nil || !profile.HasActiveSubscription(now()) {
				writeError(w, http.StatusPaymentRequired, "subscription_required", "An active subscription is required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetUser(ctx context.Context) models.User {
	user, _ := ctx.Value(UserContextKey).(models.User)
	return user
}

func writeError(w http.ResponseWriter, status int, reason string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": reason, "message": message})
}
