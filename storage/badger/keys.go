package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/ysrn/core"
)

// Key prefixes for different data types
const (
	contextBlockPrefix = "ctxblk:"
	checkpointPrefix   = "chkpt"
)

// makeContextKey generates a key for a context block by ID.
// Format: prefix + big-endian id, so iteration order is ascending ID order.
func makeContextKey(id core.ID) []byte {
	prefixBytes := []byte(contextBlockPrefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// contextIDFromKey recovers the ID from a context key.
func contextIDFromKey(key []byte) (core.ID, bool) {
	if len(key) != len(contextBlockPrefix)+8 {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(contextBlockPrefix):])), true
}

// makeCheckpointKey generates a key for a named checkpoint.
func makeCheckpointKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, name))
}
