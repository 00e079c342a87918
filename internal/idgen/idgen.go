// Package idgen generates external ids for journey steps. External ids are
// the caller-facing keys of a step map, so they must be unique within a
// journey and stable once assigned; nanoid output is URL-safe and short
// enough to read in an editor payload.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// EntrancePrefix is prepended to the external id of the entrance step seeded
// when a journey is created.
const EntrancePrefix = "entrance-"

// Alphabet is the character set used for the random portion of an id.
// Lowercase only so ids survive case-insensitive tooling.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 12

// ExternalID returns a new random external id with no prefix.
func ExternalID() (string, error) {
	return WithPrefix("")
}

// EntranceID returns a new external id for an entrance step.
func EntranceID() (string, error) {
	return WithPrefix(EntrancePrefix)
}

// WithPrefix returns a new random external id with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
