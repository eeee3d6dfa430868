package store

import "github.com/google/uuid"

// NewID returns a random document identifier.
func NewID() string {
	return uuid.NewString()
}
