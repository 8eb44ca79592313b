// Package model defines domain entities and the pure rules that derive their fields.
package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a time-sortable ULID string used as the primary key of every entity.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// ValidID reports whether id is a well-formed entity identifier.
func ValidID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
