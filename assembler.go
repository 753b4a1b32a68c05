package wsconn

import (
	"github.com/coderframe/wsconn/internal/utf8stream"
)

// assembler reassembles a sequence of data frames into a complete Message,
// enforcing the resource limits in Limits and performing streaming UTF-8
// validation on text messages as fragments arrive, mirroring the teacher's
// msgReader but built around discrete frames rather than an io.Reader.
type assembler struct {
	limits Limits

	active     bool
	op         OpCode // OpText or OpBinary for the message in progress
	buf        []byte
	fragments  int
	validator  utf8stream.Validator
	compressed bool
}

func newAssembler(limits Limits) *assembler {
	return &assembler{limits: limits}
}

// reset discards any in-progress message, for use after a protocol error.
func (a *assembler) reset() {
	a.active = false
	a.buf = nil
	a.fragments = 0
	a.validator.Reset()
	a.compressed = false
}

// addFrame feeds one decoded, unmasked data frame into the assembler; the
// frames of a compressed message are fed still compressed, and the caller
// decompresses the reassembled message. It returns a complete Message once f.header.fin
// closes out the sequence; otherwise msg is the zero Message and ok is
// false. compressed reports whether the message's FIRST frame had RSV1 set
// (permessage-deflate claims RSV1 only on the first fragment), so the
// caller must use it, not f.header.rsv1, to decide whether to decode —
// by the time fin arrives, f is the last continuation frame, whose own
// RSV1 is always 0.
func (a *assembler) addFrame(f frame, firstFrameCompressed bool) (msg Message, ok bool, compressed bool, err error) {
	op := f.header.op

	if op == OpContinuation {
		if !a.active {
			return Message{}, false, false, errProtocolViolation("continuation frame without a preceding data frame")
		}
	} else {
		if a.active {
			return Message{}, false, false, errProtocolViolation("received new data frame before previous message finished")
		}
		a.active = true
		a.op = op
		a.buf = a.buf[:0]
		a.fragments = 0
		a.validator.Reset()
		a.compressed = firstFrameCompressed
	}

	a.fragments++
	if a.limits.MaxFragmentCount > 0 && a.fragments > a.limits.MaxFragmentCount {
		compressed = a.compressed
		count := a.fragments
		a.reset()
		return Message{}, false, compressed, errTooManyFragments(count, a.limits.MaxFragmentCount)
	}

	newSize := len(a.buf) + len(f.payload)
	if a.limits.MaxMessageSize > 0 && newSize > a.limits.MaxMessageSize {
		compressed = a.compressed
		a.reset()
		return Message{}, false, compressed, errMessageTooLarge(newSize, a.limits.MaxMessageSize)
	}

	// Compressed messages are validated as UTF-8 once, after decompression
	// (see Connection.Recv); the bytes seen here are still the deflate
	// stream and streaming validation would reject them spuriously.
	if a.op == OpText && !a.compressed {
		if err := a.validator.Validate(f.payload, f.header.fin); err != nil {
			compressed = a.compressed
			a.reset()
			return Message{}, false, compressed, errInvalidUTF8()
		}
	}

	a.buf = append(a.buf, f.payload...)

	if !f.header.fin {
		return Message{}, false, a.compressed, nil
	}

	compressed = a.compressed
	msg = Message{kind: messageKindFor(a.op), data: a.buf}
	a.buf = nil
	a.active = false
	a.fragments = 0
	return msg, true, compressed, nil
}
