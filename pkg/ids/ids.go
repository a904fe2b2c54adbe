package ids

import (
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// seq reduces collisions when multiple IDs are minted in the same
// nanosecond.
var seq uint64

// NewID returns a globally unique, lexicographically sortable identifier.
// Key format: <unix_nano_padded>-<seq>-<uuid-fragment>. IDs are minted by
// request handlers at creation time, never by a store.
func NewID() string {
	ts := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&seq, 1) % 1000000
	frag := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%020d-%06d-%s", ts, s, frag)
}

// NewUID returns a random numeric identifier of n digits, used as the
// sorted-set score backing global pagination. The first digit is never
// zero so the value keeps its width when parsed.
func NewUID(n int) string {
	if n <= 0 {
		n = 12
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		lo := 0
		if i == 0 {
			lo = 1
		}
		b.WriteByte(byte('0' + lo + rand.Intn(10-lo)))
	}
	return b.String()
}
