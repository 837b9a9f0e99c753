package flightstatus

import (
	"github.com/google/uuid"
)

// IsUUID reports whether s is a valid UUID in any of the formats accepted by
// uuid.Parse.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)

	return err == nil
}

// GenerateUUIDv7 generates a new UUID v7 using the google/uuid package.
// Returns the generated UUID or an error if crypto/rand fails.
func GenerateUUIDv7() (uuid.UUID, error) {
	return uuid.NewV7()
}
