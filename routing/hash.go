package routing

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"github.com/cespare/xxhash"
)

// noneEffectivePartitionKey is the fixed wire value every collection uses
// for operations whose partition key is the explicit "none" sentinel.
const noneEffectivePartitionKey = "FFFFFFFFFFFFFFFF"

// hashComponent computes the effective partition key for a single-path
// hash partition key component, hex-encoded to sort lexicographically the
// same way the server's routing map boundaries do.
func hashComponent(v interface{}) string {
	h := xxhash.New()
	writeComponent(h, v)
	return encodeHash(h.Sum64())
}

// hashComponents computes the effective partition key for a multi-path
// (composite) hash partition key, folding each component's hash into a
// running digest in path order so component order is significant.
func hashComponents(vs []interface{}) string {
	h := xxhash.New()
	for _, v := range vs {
		writeComponent(h, v)
	}
	return encodeHash(h.Sum64())
}

// writeComponent feeds a single partition-key component's canonical byte
// representation into the running hash. Every component starts with a
// one-byte type tag so that 1 and "1" never collide; a float64 is then
// written as 8 bytes and an int as its decimal text.
func writeComponent(h hash.Hash64, v interface{}) {
	switch val := v.(type) {
	case nil:
		h.Write([]byte{0x00})
	case string:
		h.Write([]byte{0x01})
		h.Write([]byte(val))
	case bool:
		h.Write([]byte{0x02})
		if val {
			h.Write([]byte{0x01})
		} else {
			h.Write([]byte{0x00})
		}
	case float64:
		h.Write([]byte{0x03})
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(val))
		h.Write(buf[:])
	case int:
		h.Write([]byte{0x03})
		h.Write([]byte(strconv.Itoa(val)))
	default:
		h.Write([]byte{0xFF})
		h.Write([]byte(fmt.Sprintf("%v", val)))
	}
}

// encodeHash renders a 64-bit digest as a fixed-width, uppercase-hex
// effective partition key, matching the wire format routing map
// boundaries use for lexicographic comparison.
func encodeHash(sum uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], sum)
	return strings.ToUpper(hex.EncodeToString(buf[:]))
}
