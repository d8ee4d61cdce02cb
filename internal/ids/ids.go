package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewRunID returns a sortable identifier for one provision or reseed invocation.
// Log lines, audit events and metrics files of the same run share it.
func NewRunID() string {
	return NewRunIDAt(time.Now())
}

// NewRunIDAt returns a run identifier whose timestamp component is t.
func NewRunIDAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
