package middleware

import (
	"context"
	"net/http"
	"strconv"
)

type contextKey string

const userIDKey contextKey = "user_id"

// RequireUser resolves the caller from the X-User-ID header and puts
// the id on the request context. It stands in for a real session layer
// in front of the transactional core.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.Atoi(r.Header.Get("X-User-ID"))
		if err != nil || userID <= 0 {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserIDFromContext returns the authenticated user id, or 0 when
// the request did not pass through RequireUser.
func GetUserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 0
}
