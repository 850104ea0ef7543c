package btree

import "encoding/binary"

// ByteCodec is the identity Codec for raw []byte keys/values — the same
// representation DaemonDB's bplustree package uses natively throughout.
type ByteCodec struct{}

func (ByteCodec) Encode(v []byte) []byte { return v }
func (ByteCodec) Decode(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Int64Codec encodes int64 keys/values as fixed-width big-endian bytes with
// the sign bit flipped, so byte-order comparison (if ever used as a
// fallback) agrees with numeric order, negative values included.
type Int64Codec struct{}

func (Int64Codec) Encode(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v)^(1<<63))
	return b
}

func (Int64Codec) Decode(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

// CompareBytes is the natural three-way comparator for []byte keys.
func CompareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// CompareInt64 is the natural three-way comparator for int64 keys.
func CompareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
