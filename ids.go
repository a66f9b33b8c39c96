package composer

import "github.com/google/uuid"

// newID returns a time-ordered, globally unique, URL-safe identifier.
// UUIDv7 keys sort by creation time, which keeps freshly composed pages and
// instances clustered in storage listings.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the random source does; fall back to v4.
		return uuid.NewString()
	}
	return id.String()
}
