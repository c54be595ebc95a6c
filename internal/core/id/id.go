// Package id provides UUIDv7 generation for rows owned by this service
// (movements, financial transactions, ledger entries) and UUID validation for imports.
package id

import (
	"regexp"

	"github.com/google/uuid"
)

// ID is a type alias for UUID.
type ID = uuid.UUID

// SingletonKey is the fixed primary key of single-row tables such as financial_balance.
const SingletonKey = "1"

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// New generates a new UUIDv7 (time-ordered UUID).
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// NewString is New().String().
func NewString() string {
	return New().String()
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// IsUUID reports whether s has canonical 8-4-4-4-12 hex form.
func IsUUID(s string) bool {
	return uuidPattern.MatchString(s)
}
