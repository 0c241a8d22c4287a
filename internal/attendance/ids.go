package attendance

import "github.com/google/uuid"

// ID prefixes for generated identifiers.
const (
	TeacherIDPrefix = "mock-teacher"
	StudentIDPrefix = "mock-student"
	SessionIDPrefix = "session"
)

// IDGenerator returns a new identifier carrying the given prefix.
type IDGenerator func(prefix string) string

// NewID builds "<prefix>-<uuidv7>". Version 7 ids are time ordered and carry
// random bits, so ids minted in the same millisecond still differ.
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "-" + id.String()
}
