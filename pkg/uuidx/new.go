// Package uuidx generates the identifiers used by the brokers.
package uuidx

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// New returns a time-ordered version 7 UUID. It panics when the random source fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString is New in its canonical string form.
func NewString() string {
	return New().String()
}

// Token returns a random version 4 UUID as 32 hex characters. It carries no
// timestamp and is used for reply subjects that must not be guessed.
func Token() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
