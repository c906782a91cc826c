package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit admits at most limit requests per sliding window for each
// caller. Authenticated callers are keyed by user id, anonymous ones by
// client address. Rejected requests get a 429 and are never queued.
func RateLimit(name string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(identityKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			key, _ := identityKey(r)
			slog.Warn("rate limit exceeded", "limiter", name, "key", key, "path", r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, please try again later")
		}),
	)
}

func identityKey(r *http.Request) (string, error) {
	if user := GetUser(r.Context()); user.ID != "" {
		return "user:" + user.ID, nil
	}
	address, err := httprate.KeyByRealIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + address, nil
}
