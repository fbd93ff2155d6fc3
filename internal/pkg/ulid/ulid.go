// Package ulid provides ULID generation utilities.
package ulid

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// PlaceholderPrefix marks an external id synthesized for an invited user who
// has not logged in with the identity provider yet.
const PlaceholderPrefix = "pending|"

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// New generates a new ULID.
func New() string {
	return NewFromTime(time.Now())
}

// NewFromTime generates a new ULID with a specific timestamp.
func NewFromTime(t time.Time) string {
	entropyLock.Lock()
	defer entropyLock.Unlock()

	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	return id.String()
}

// NewPlaceholderExternalID returns a unique temporary external id.
func NewPlaceholderExternalID() string {
	return PlaceholderPrefix + New()
}

// IsPlaceholderExternalID reports whether id was produced by NewPlaceholderExternalID.
func IsPlaceholderExternalID(id string) bool {
	rest, ok := strings.CutPrefix(id, PlaceholderPrefix)
	if !ok {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}
