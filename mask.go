package wsconn

import (
	"encoding/binary"
)

// applyMask XORs b in place with key, starting at the rotation keyPos into
// key (keyPos is always taken mod 4). It returns the rotation to resume
// masking with on a subsequent call, so a key can be applied across frame
// fragments or streamed writes without needing the full payload at once.
// See https://tools.ietf.org/html/rfc6455#section-5.3.
func applyMask(key [4]byte, keyPos int, b []byte) int {
	return maskImpl(key, keyPos, b)
}

// maskScalar is the portable reference implementation: an 8-byte-aligned
// key is built from the rotation and XORed in unrolled chunks, falling back
// to a byte loop for anything that doesn't fill a chunk. Grounded in the
// teacher's fastXOR (xor.go).
func maskScalar(key [4]byte, keyPos int, b []byte) int {
	if len(b) >= 16 {
		var aligned [8]byte
		for i := range aligned {
			aligned[i] = key[(i+keyPos)&3]
		}
		k := binary.LittleEndian.Uint64(aligned[:])

		for len(b) >= 64 {
			for i := 0; i < 64; i += 8 {
				v := binary.LittleEndian.Uint64(b[i:])
				binary.LittleEndian.PutUint64(b[i:], v^k)
			}
			b = b[64:]
		}
		for len(b) >= 8 {
			v := binary.LittleEndian.Uint64(b)
			binary.LittleEndian.PutUint64(b, v^k)
			b = b[8:]
		}
	}

	for i := range b {
		b[i] ^= key[keyPos&3]
		keyPos++
	}
	return keyPos & 3
}

// rotateKey returns key rotated so that applying it from position 0 is
// equivalent to applying the original key starting at keyPos.
func rotateKey(key [4]byte, keyPos int) [4]byte {
	var out [4]byte
	for i := range out {
		out[i] = key[(i+keyPos)&3]
	}
	return out
}
