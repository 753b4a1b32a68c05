package wsconn

import (
	"bytes"
	"testing"

	"github.com/coderframe/wsconn/internal/test/cmp"
	"github.com/coderframe/wsconn/internal/test/xrand"
)

func Test_applyMask(t *testing.T) {
	t.Parallel()

	key := [4]byte{0xa, 0xb, 0xc, 0xff}
	p := []byte{0xa, 0xb, 0xc, 0xf2, 0xc}
	pos := applyMask(key, 0, p)

	if exp := []byte{0, 0, 0, 0x0d, 0x6}; !cmp.Equal(exp, p) {
		t.Fatalf("unexpected mask: %v", cmp.Diff(exp, p))
	}
	if exp := 1; !cmp.Equal(exp, pos) {
		t.Fatalf("unexpected mask pos: %v", cmp.Diff(exp, pos))
	}
}

// Test_applyMask_involution confirms masking twice with the same key and
// starting position returns the original bytes, for payload sizes that
// exercise both the unrolled chunk path and the scalar tail.
func Test_applyMask_involution(t *testing.T) {
	t.Parallel()

	key := [4]byte{0x37, 0xfa, 0x21, 0x3d}
	for _, n := range []int{0, 1, 3, 4, 7, 8, 15, 16, 63, 64, 65, 127, 1000} {
		orig := xrand.Bytes(n)
		got := append([]byte(nil), orig...)

		applyMask(key, 0, got)
		applyMask(key, 0, got)

		if !bytes.Equal(orig, got) {
			t.Fatalf("len %d: masking twice did not round trip", n)
		}
	}
}

// Test_applyMask_keyPosResumes confirms masking a payload in one call
// produces the same result as masking it split across two calls, carrying
// the returned keyPos forward.
func Test_applyMask_keyPosResumes(t *testing.T) {
	t.Parallel()

	key := [4]byte{0x01, 0x02, 0x03, 0x04}
	data := xrand.Bytes(37)

	whole := append([]byte(nil), data...)
	applyMask(key, 0, whole)

	split := append([]byte(nil), data...)
	pos := applyMask(key, 0, split[:13])
	applyMask(key, pos, split[13:])

	if !bytes.Equal(whole, split) {
		t.Fatalf("split masking diverged from whole masking:\n whole %x\n split %x", whole, split)
	}
}

// Test_maskScalar_maskWide_agree confirms the capability-dispatched wide
// path and the portable scalar path produce identical output, since only
// one of them runs on any given machine.
func Test_maskScalar_maskWide_agree(t *testing.T) {
	t.Parallel()

	key := [4]byte{0x9, 0x8, 0x7, 0x6}
	for _, n := range []int{0, 1, 31, 32, 33, 63, 64, 200, 4096} {
		data := xrand.Bytes(n)

		scalarBuf := append([]byte(nil), data...)
		scalarPos := maskScalar(key, 0, scalarBuf)

		wideBuf := append([]byte(nil), data...)
		widePos := maskWide(key, 0, wideBuf)

		if !bytes.Equal(scalarBuf, wideBuf) {
			t.Fatalf("len %d: maskScalar and maskWide disagree:\n scalar %x\n wide   %x", n, scalarBuf, wideBuf)
		}
		if scalarPos != widePos {
			t.Fatalf("len %d: maskScalar and maskWide returned different positions: %d vs %d", n, scalarPos, widePos)
		}
	}
}

func Benchmark_applyMask(b *testing.B) {
	key := [4]byte{0x37, 0xfa, 0x21, 0x3d}
	buf := xrand.Bytes(32 * 1024)
	b.SetBytes(int64(len(buf)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		applyMask(key, 0, buf)
	}
}
