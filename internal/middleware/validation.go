package middleware

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/presskit/presskit/internal/apperror"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/response"
)

// MaxSlugLength bounds public slugs accepted on the wire.
const MaxSlugLength = 128

// ErrSlugInvalid is returned for slugs that Slugify could never produce.
var ErrSlugInvalid = errors.New("slug contains invalid characters")

var validSlugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidateSlug checks a public EPK slug.
func ValidateSlug(slug string) error {
	if slug == "" || len(slug) > MaxSlugLength || !validSlugPattern.MatchString(slug) {
		return ErrSlugInvalid
	}
	return nil
}

// ValidateIDParams returns middleware that rejects requests whose named chi
// URL parameters are not well-formed entity IDs. Malformed IDs answer
// "Resource not found" before reaching the store.
func ValidateIDParams(errs response.ErrorWriter, names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, name := range names {
				if !model.ValidID(chi.URLParam(r, name)) {
					errs.Write(w, r, apperror.ErrInvalidID)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidateSlugParam returns middleware that rejects malformed slug parameters
// with a 404, the same answer an unknown slug gets.
func ValidateSlugParam(errs response.ErrorWriter, name string, notFound error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := ValidateSlug(chi.URLParam(r, name)); err != nil {
				errs.Write(w, r, notFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
