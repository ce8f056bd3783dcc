package valueobjects

import (
	"github.com/google/uuid"
)

// NewID returns a fresh opaque identifier for nodes, edges, versions and comments.
// Identifiers are stable for the lifetime of the entity and never reused.
func NewID() string {
	return uuid.New().String()
}

// IsValidUUID validates if a string is a valid UUID
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
