// Package ids mints the sortable identifiers used for jobs and stage
// artifacts. Identifiers are ULIDs: 26 characters, lexicographically
// ordered by creation time.
package ids

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID string. Successive calls within the same
// millisecond remain strictly increasing.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

// Validate reports whether s parses as a ULID.
func Validate(s string) error {
	if _, err := ulid.ParseStrict(s); err != nil {
		return fmt.Errorf("invalid identifier %q: %w", s, err)
	}
	return nil
}
