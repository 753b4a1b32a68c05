package wsconn

import (
	"encoding/binary"
	"math"
)

// maxControlPayload is the maximum length of a control frame payload.
// See https://tools.ietf.org/html/rfc6455#section-5.5.
const maxControlPayload = 125

// frameHeader is the decoded form of a WebSocket frame header.
// See https://tools.ietf.org/html/rfc6455#section-5.2.
type frameHeader struct {
	fin  bool
	rsv1 bool
	rsv2 bool
	rsv3 bool
	op   OpCode

	payloadLength int64

	masked  bool
	maskKey [4]byte
}

// frame is a fully decoded WebSocket frame. readFrame allocates payload
// afresh for every frame, so it never aliases the connection's read buffer.
type frame struct {
	header  frameHeader
	payload []byte
}

// parseFrameHeader decodes a frame header from the front of buf. It never
// reads past what RFC 6455 says the header occupies.
//
// On success it returns the header and the number of bytes consumed.
// If buf does not yet hold a complete header, need > 0 is the number of
// additional bytes required before calling again, and consumed is 0.
// A non-nil err means buf contains a header RFC 6455 forbids.
func parseFrameHeader(buf []byte, isServer bool, acceptUnmasked bool) (h frameHeader, consumed, need int, err error) {
	if len(buf) < 2 {
		return frameHeader{}, 0, 2 - len(buf), nil
	}

	b0, b1 := buf[0], buf[1]

	h.fin = b0&(1<<7) != 0
	h.rsv1 = b0&(1<<6) != 0
	h.rsv2 = b0&(1<<5) != 0
	h.rsv3 = b0&(1<<4) != 0
	h.op = OpCode(b0 & 0xf)

	if h.op.Reserved() {
		return frameHeader{}, 0, 0, errReservedOpcode(h.op)
	}

	h.masked = b1&(1<<7) != 0
	if isServer && !h.masked && !acceptUnmasked {
		return frameHeader{}, 0, 0, errUnmaskedClientFrame()
	}
	if !isServer && h.masked {
		return frameHeader{}, 0, 0, errMaskedServerFrame()
	}

	lenField := b1 &^ (1 << 7)
	pos := 2
	switch {
	case lenField < 126:
		h.payloadLength = int64(lenField)
	case lenField == 126:
		if len(buf) < pos+2 {
			return frameHeader{}, 0, pos + 2 - len(buf), nil
		}
		h.payloadLength = int64(binary.BigEndian.Uint16(buf[pos:]))
		if h.payloadLength < 126 {
			return frameHeader{}, 0, 0, errInvalidFrame("16-bit length not minimally encoded")
		}
		pos += 2
	case lenField == 127:
		if len(buf) < pos+8 {
			return frameHeader{}, 0, pos + 8 - len(buf), nil
		}
		n := binary.BigEndian.Uint64(buf[pos:])
		if n > math.MaxInt64 {
			return frameHeader{}, 0, 0, errInvalidFrame("64-bit length overflows int64")
		}
		h.payloadLength = int64(n)
		if h.payloadLength <= math.MaxUint16 {
			return frameHeader{}, 0, 0, errInvalidFrame("64-bit length not minimally encoded")
		}
		pos += 8
	}

	if h.op.IsControl() {
		if h.payloadLength > maxControlPayload {
			return frameHeader{}, 0, 0, errControlFrameTooLarge(int(h.payloadLength))
		}
		if !h.fin {
			return frameHeader{}, 0, 0, errFragmentedControlFrame()
		}
	}

	if h.masked {
		if len(buf) < pos+4 {
			return frameHeader{}, 0, pos + 4 - len(buf), nil
		}
		copy(h.maskKey[:], buf[pos:pos+4])
		pos += 4
	}

	return h, pos, 0, nil
}

// writeFrameHeader appends the wire encoding of h to buf and returns the
// result. See https://tools.ietf.org/html/rfc6455#section-5.2.
func writeFrameHeader(buf []byte, h frameHeader) []byte {
	var b0 byte
	if h.fin {
		b0 |= 1 << 7
	}
	if h.rsv1 {
		b0 |= 1 << 6
	}
	if h.rsv2 {
		b0 |= 1 << 5
	}
	if h.rsv3 {
		b0 |= 1 << 4
	}
	b0 |= byte(h.op)
	buf = append(buf, b0)

	var b1 byte
	if h.masked {
		b1 |= 1 << 7
	}

	switch {
	case h.payloadLength > math.MaxUint16:
		buf = append(buf, b1|127)
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(h.payloadLength))
		buf = append(buf, lenBuf[:]...)
	case h.payloadLength > 125:
		buf = append(buf, b1|126)
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(h.payloadLength))
		buf = append(buf, lenBuf[:]...)
	default:
		buf = append(buf, b1|byte(h.payloadLength))
	}

	if h.masked {
		buf = append(buf, h.maskKey[:]...)
	}

	return buf
}
