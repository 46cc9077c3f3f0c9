package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter keeps one token bucket per client key. Buckets idle for longer
// than the sweep interval are dropped on the next call.
type KeyedLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter allows perMinute requests per key with bursts up to burst.
func NewKeyedLimiter(perMinute, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(max(perMinute, 1))),
		burst:    max(burst, 1),
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

func (l *KeyedLimiter) bucket(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.idle {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Allow takes one token from key's bucket.
func (l *KeyedLimiter) Allow(key string) bool {
	now := l.now()
	return l.bucket(key, now).AllowN(now, 1)
}

// Remaining reports the whole tokens left in key's bucket.
func (l *KeyedLimiter) Remaining(key string) int {
	now := l.now()
	return max(int(l.bucket(key, now).TokensAt(now)), 0)
}

// RetryAfter is how long key must wait for its next token, in whole seconds.
func (l *KeyedLimiter) RetryAfter(key string) int {
	now := l.now()
	missing := 1 - l.bucket(key, now).TokensAt(now)
	if missing <= 0 {
		return 0
	}
	return int(math.Ceil(missing / float64(l.limit)))
}

// RateLimitConfig configures one rate limiting middleware.
type RateLimitConfig struct {
	// Name labels log records, e.g. "api" or "grading".
	Name              string
	RequestsPerMinute int
	// Burst is the bucket size. Zero means three times the per-minute rate.
	Burst   int
	Message string
}

// DefaultRateLimitConfig limits general API traffic.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Name:              "api",
		RequestsPerMinute: 120,
		Message:           "too many requests, please try again later",
	}
}

// GradingRateLimitConfig limits endpoints that call the judge.
func GradingRateLimitConfig(perMinute int) RateLimitConfig {
	return RateLimitConfig{
		Name:              "grading",
		RequestsPerMinute: perMinute,
		Burst:             perMinute,
		Message:           "too many grading requests, please wait before trying again",
	}
}

// RateLimit rejects requests over the configured rate with 429.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	burst := cfg.Burst
	if burst == 0 {
		burst = cfg.RequestsPerMinute * 3
	}
	return rateLimitWith(NewKeyedLimiter(cfg.RequestsPerMinute, burst), cfg)
}

func rateLimitWith(limiter *KeyedLimiter, cfg RateLimitConfig) func(http.Handler) http.Handler {
	body := []byte(`{"error":{"code":"RATE_LIMITED","message":` + strconv.Quote(cfg.Message) + `}}`)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			if !limiter.Allow(key) {
				slog.Warn("rate limit exceeded",
					"limiter", cfg.Name,
					"client", key,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(max(limiter.RetryAfter(key), 1)))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write(body)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey buckets authenticated learners by user id and everyone else by IP.
func clientKey(r *http.Request) string {
	if id, ok := GetUserID(r.Context()); ok {
		return "user:" + id.String()
	}
	return "ip:" + getClientIP(r)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
