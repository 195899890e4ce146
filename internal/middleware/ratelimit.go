package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/vibelist/internal/auth"
)

// UserRateLimiter throttles requests per authenticated user with a token
// bucket: `limit` requests per `window`, refilled continuously. Limiters are
// kept per user and dropped after an idle period so the map cannot grow
// without bound.
type UserRateLimiter struct {
	mu       sync.Mutex
	users    map[string]*userLimiter
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	lastSwep time.Time
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter allows `limit` requests per `window` per user.
func NewUserRateLimiter(limit int, window time.Duration) *UserRateLimiter {
	return &UserRateLimiter{
		users:    make(map[string]*userLimiter),
		rate:     rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		idleTTL:  10 * window,
		lastSwep: time.Now(),
	}
}

// Allow reports whether userID may proceed now.
func (l *UserRateLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSwep) > l.idleTTL {
		for id, ul := range l.users {
			if now.Sub(ul.lastSeen) > l.idleTTL {
				delete(l.users, id)
			}
		}
		l.lastSwep = now
	}

	ul, ok := l.users[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.users[userID] = ul
	}
	ul.lastSeen = now
	return ul.limiter.Allow()
}

// Middleware rejects over-limit requests with 429. It must run after the
// auth middleware so the user ID is in the context.
func (l *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if ok && !l.Allow(userID) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"Rate limit exceeded. Please wait a moment."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
