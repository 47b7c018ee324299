package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// ID identifies a run, a websocket client or any other short-lived entity.
type ID struct {
	value uuid.UUID
}

// NewID creates a new random ID.
func NewID() ID {
	return ID{value: uuid.New()}
}

// ParseID parses the canonical string form of an ID.
func ParseID(s string) (ID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid id format: %w", err)
	}
	return ID{value: parsed}, nil
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return id.value.String()
}

// Short returns the first eight characters, enough to tell runs apart in logs.
func (id ID) Short() string {
	return id.value.String()[:8]
}

// IsZero returns true if the ID is empty.
func (id ID) IsZero() bool {
	return id.value == uuid.Nil
}

// Equals checks if two IDs are equal.
func (id ID) Equals(other ID) bool {
	return id.value == other.value
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error {
	parsed, err := uuid.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("invalid id format: %w", err)
	}
	id.value = parsed
	return nil
}
