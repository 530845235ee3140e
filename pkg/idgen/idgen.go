// Package idgen is the id-generation collaborator: fresh random
// strings for commit ids (spec §3: "Commit ids are not content-based
// — they are fresh random strings") and entity ids, backed by
// google/uuid the way the teacher's dependency stack already supplies
// random ids for the broader corpus.
package idgen

import (
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
)

// Generator produces fresh, collision-resistant ids.
type Generator interface {
	New() string
}

// UUID is the production Generator. It mints a UUIDv4 and hex-encodes
// its low 4 bytes, giving an 8-character id over [a-z0-9] — the shape
// spec §6 asks for ("random over [a-z0-9]{8} by default") — rather
// than handing back the full 36-character hyphenated UUID string.
type UUID struct{}

// New returns a fresh 8-character lowercase-hex id.
func (UUID) New() string {
	u := uuid.New()
	return hex.EncodeToString(u[12:16])
}

// Sequential is a deterministic Generator for tests: ids are a fixed
// prefix plus an incrementing counter.
type Sequential struct {
	Prefix string
	next   int
}

// New returns the next "<Prefix>-<n>" id.
func (s *Sequential) New() string {
	s.next++
	return s.Prefix + "-" + strconv.Itoa(s.next)
}
