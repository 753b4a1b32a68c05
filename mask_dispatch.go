package wsconn

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

// maskImpl is resolved once at init time based on the widest word-aligned
// XOR chunk this CPU can use efficiently. Grounded in the teacher's
// mask_asm.go, which dispatched to hand-written assembly behind
// cpu.X86.HasAVX2; the pack did not retrieve that assembly, so the wide
// path here is a pure-Go 32-byte-unrolled variant rather than real SIMD,
// kept behind the same capability check so a real assembly
// implementation can drop in later without touching call sites.
var maskImpl = func() func(key [4]byte, keyPos int, b []byte) int {
	if cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		return maskWide
	}
	return maskScalar
}()

// maskWide XORs 32 bytes per iteration instead of maskScalar's 8, trading
// more unrolling for fewer loop-branch mispredicts on the CPUs that report
// HasAVX2/HasASIMD above.
func maskWide(key [4]byte, keyPos int, b []byte) int {
	if len(b) >= 32 {
		var aligned [8]byte
		for i := range aligned {
			aligned[i] = key[(i+keyPos)&3]
		}
		k := binary.LittleEndian.Uint64(aligned[:])

		for len(b) >= 32 {
			v0 := binary.LittleEndian.Uint64(b)
			v1 := binary.LittleEndian.Uint64(b[8:])
			v2 := binary.LittleEndian.Uint64(b[16:])
			v3 := binary.LittleEndian.Uint64(b[24:])
			binary.LittleEndian.PutUint64(b, v0^k)
			binary.LittleEndian.PutUint64(b[8:], v1^k)
			binary.LittleEndian.PutUint64(b[16:], v2^k)
			binary.LittleEndian.PutUint64(b[24:], v3^k)
			b = b[32:]
		}
	}
	return maskScalar(key, keyPos, b)
}
