package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/cache"
	"github.com/presskit/presskit/internal/response"
)

// RateLimiter counts hits per scope and client. *cache.Cache implements it.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, scope, ip string, max int, window time.Duration) (*cache.RateLimitResult, error)
}

// RateLimitRule is a fixed-window limit for one scope of routes.
type RateLimitRule struct {
	Scope   string
	Max     int
	Window  time.Duration
	Message string
}

// Limit rules for the three route scopes.
func APIRateLimit(max int, window time.Duration) RateLimitRule {
	return RateLimitRule{
		Scope:   "api",
		Max:     max,
		Window:  window,
		Message: "Too many requests from this IP, please try again after 15 minutes",
	}
}

func AuthRateLimit(max int, window time.Duration) RateLimitRule {
	return RateLimitRule{
		Scope:   "auth",
		Max:     max,
		Window:  window,
		Message: "Too many authentication attempts, please try again after an hour",
	}
}

func ContactRateLimit(max int, window time.Duration) RateLimitRule {
	return RateLimitRule{
		Scope:   "contact",
		Max:     max,
		Window:  window,
		Message: "Too many contact form submissions, please try again after an hour",
	}
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter RateLimiter
	Errors  response.ErrorWriter
	Enabled bool
}

// RateLimit returns middleware that limits requests per client IP under rule.
// Limiter failures let the request through.
func RateLimit(cfg RateLimitConfig, rule RateLimitRule) func(http.Handler) http.Handler {
	tooMany := apperror.New(http.StatusTooManyRequests, rule.Message)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || rule.Max <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := GetClientIP(r)
			result, err := cfg.Limiter.CheckRateLimit(r.Context(), rule.Scope, ip, rule.Max, rule.Window)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("scope", rule.Scope),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, result)

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("scope", rule.Scope),
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", retryAfterSeconds(result.RetryAfter)),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(result.RetryAfter), 10))
				cfg.Errors.Write(w, r, tooMany)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, result *cache.RateLimitResult) {
	if result.Limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func retryAfterSeconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}

// GetClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers for proxied requests.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
