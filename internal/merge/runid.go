package merge

import "github.com/google/uuid"

// RunIDGenerator names merge runs in logs and reports.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable run IDs, so runs sort by start time
// in collected logs.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7. It panics if the system random source
// fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
