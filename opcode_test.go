package wsconn

import "testing"

func Test_OpCode_IsControl(t *testing.T) {
	t.Parallel()

	for _, op := range []OpCode{OpClose, OpPing, OpPong} {
		if !op.IsControl() {
			t.Fatalf("%v should be a control opcode", op)
		}
	}
	for _, op := range []OpCode{OpContinuation, OpText, OpBinary} {
		if op.IsControl() {
			t.Fatalf("%v should not be a control opcode", op)
		}
	}
}

func Test_OpCode_Reserved(t *testing.T) {
	t.Parallel()

	for _, op := range []OpCode{OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong} {
		if op.Reserved() {
			t.Fatalf("%v should not be reserved", op)
		}
	}
	for _, op := range []OpCode{0x3, 0x4, 0x5, 0x6, 0x7, 0xb, 0xc, 0xf} {
		if !op.Reserved() {
			t.Fatalf("opcode %#x should be reserved", byte(op))
		}
	}
}

func Test_OpCode_String(t *testing.T) {
	t.Parallel()

	cases := map[OpCode]string{
		OpContinuation: "continuation",
		OpText:         "text",
		OpBinary:       "binary",
		OpClose:        "close",
		OpPing:         "ping",
		OpPong:         "pong",
		0x3:            "reserved",
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Fatalf("%#x.String() = %q, want %q", byte(op), got, want)
		}
	}
}
