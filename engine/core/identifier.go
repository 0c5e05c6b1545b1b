package core

import "github.com/google/uuid"

// NewIdentifier returns a random identifier for engine objects that need a
// stable name across their lifetime (resources, render targets, captures).
func NewIdentifier() uuid.UUID {
	return uuid.New()
}

// ShortIdentifier is the first block of a fresh identifier, handy for
// generated debug names.
func ShortIdentifier() string {
	return uuid.NewString()[:8]
}
