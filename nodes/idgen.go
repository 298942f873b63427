package nodes

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
)

// itoa is a terse int-to-string helper used when composing history strings.
func itoa(n int) string { return strconv.Itoa(n) }

// newID returns a short random hex identifier for a new Strategy, KB
// record, or HIL request. Collisions are astronomically unlikely within a
// single run's population size and are not checked for.
func newID(prefix string) string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return prefix + "-" + hex.EncodeToString(buf[:])
}
