package domain

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// ULID represents a Universally Unique Lexicographically Sortable Identifier
// @Description A string representation of ULID
// @type string
// @format ulid
type ULID = ulid.ULID

// ParseULID parses a stored connection id
func ParseULID(id string) (ULID, error) {
	parsedID, err := ulid.Parse(id)
	if err != nil {
		return ULID{}, fmt.Errorf("invalid connection id %q: %w", id, err)
	}
	return parsedID, nil
}
