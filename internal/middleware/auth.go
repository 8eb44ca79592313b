package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/auth"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/response"
)

// Authenticator resolves a bearer token to an active user.
// *service.AuthService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger        *slog.Logger
	Authenticator Authenticator
	Errors        response.ErrorWriter
}

var (
	errNotAuthorized    = apperror.Unauthorized("Not authorized to access this route")
	errEmailNotVerified = apperror.Forbidden("Please verify your email address to access this route")
)

// Protect returns a middleware that requires a valid bearer token.
// It resolves the token's user and injects an auth.Principal into the request.
func Protect(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				cfg.Errors.Write(w, r, errNotAuthorized)
				return
			}

			user, err := cfg.Authenticator.Authenticate(r.Context(), token)
			if err != nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("error", err.Error()),
					slog.String("ip", GetClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				cfg.Errors.Write(w, r, err)
				return
			}

			ctx := auth.ContextWithPrincipal(r.Context(), &auth.Principal{User: user, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize returns middleware that admits only users on one of tiers.
// Must be applied after Protect.
func Authorize(errs response.ErrorWriter, tiers ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.PrincipalFromContext(r.Context())
			if p == nil || p.User == nil {
				errs.Write(w, r, errNotAuthorized)
				return
			}
			if !p.User.HasTier(tiers...) {
				errs.Write(w, r, apperror.Forbidden(
					fmt.Sprintf("User tier %s is not authorized to access this route", p.User.Tier)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireVerifiedEmail returns middleware that rejects users whose email is
// not yet verified. Must be applied after Protect.
func RequireVerifiedEmail(errs response.ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.PrincipalFromContext(r.Context())
			if p == nil || p.User == nil {
				errs.Write(w, r, errNotAuthorized)
				return
			}
			if !p.User.Settings.EmailVerified {
				errs.Write(w, r, errEmailNotVerified)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken reads "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
