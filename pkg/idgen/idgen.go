// Package idgen generates the time-ordered unique ids spec §3(iv)
// requires: insertion order must correspond to id order. The teacher
// uses github.com/google/uuid for opaque ids; mnemo needs sortable ids
// (so list_memories_by_agent_ordered's "ascending by created_at" lines
// up with id order even at sub-millisecond write rates), so ids are a
// millisecond timestamp prefix plus a uuid suffix for uniqueness.
package idgen

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	mu       sync.Mutex
	lastMS   int64
	lastSeq  int
)

// New returns a new time-ordered id of the form
// "<16-hex-ms-timestamp>-<4-hex-sequence>-<8-hex-random>". Calling New concurrently
// never returns a non-increasing id for the same process: a monotonic
// counter breaks ties within the same millisecond.
func New() string {
	mu.Lock()
	now := time.Now().UnixMilli()
	if now == lastMS {
		lastSeq++
	} else {
		lastMS = now
		lastSeq = 0
	}
	seq := lastSeq
	mu.Unlock()

	rnd := uuid.New()
	return fmt.Sprintf("%016x-%04x-%s", now, seq, hex.EncodeToString(rnd[:4]))
}

// Timestamp extracts the millisecond timestamp encoded in an id minted
// by New. It returns false for ids not in this package's format (e.g.
// legacy or externally supplied ids), so callers should treat failure
// as "unknown, fall back to created_at".
func Timestamp(id string) (time.Time, bool) {
	if len(id) < 16 {
		return time.Time{}, false
	}
	ms, err := parseHex16(id[:16])
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func parseHex16(s string) (int64, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 8 {
		return 0, fmt.Errorf("idgen: malformed timestamp segment %q", s)
	}
	var v int64
	for _, x := range b {
		v = v<<8 | int64(x)
	}
	return v, nil
}
