package pvmblob

import (
	"encoding/binary"
	"math/bits"
)

// ReadVarint decodes the variable-length natural used throughout the blob:
// the count of leading one bits in the first byte is the number of
// little-endian bytes that follow, the remaining low bits of the first
// byte are the high part of the value.
func ReadVarint(p []byte) (x uint64, n int, ok bool) {
	if len(p) == 0 {
		return 0, 0, false
	}
	head := p[0]
	if head == 0xff {
		if len(p) < 9 {
			return 0, 0, false
		}
		return binary.LittleEndian.Uint64(p[1:9]), 9, true
	}
	l := bits.LeadingZeros8(^head)
	if len(p) < 1+l {
		return 0, 0, false
	}
	high := uint64(head & (0xff >> (l + 1)))
	var low uint64
	for i := range l {
		low |= uint64(p[1+i]) << (8 * i)
	}
	return high<<(8*l) | low, 1 + l, true
}

// AppendVarint is the inverse of ReadVarint, picking the shortest form.
func AppendVarint(dst []byte, x uint64) []byte {
	for l := 0; l < 8; l++ {
		if x < uint64(1)<<(7*(l+1)) {
			prefix := byte(0xff << (8 - l))
			dst = append(dst, prefix|byte(x>>(8*l)))
			for i := range l {
				dst = append(dst, byte(x>>(8*i)))
			}
			return dst
		}
	}
	dst = append(dst, 0xff)
	return binary.LittleEndian.AppendUint64(dst, x)
}
