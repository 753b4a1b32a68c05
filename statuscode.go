package wsconn

import (
	"encoding/binary"
	"fmt"
)

// CloseCode represents a WebSocket close status code.
// See https://www.iana.org/assignments/websocket/websocket.xhtml#close-code-number.
type CloseCode uint16

// Close code constants.
const (
	CloseNormalClosure CloseCode = 1000 + iota
	CloseGoingAway
	CloseProtocolError
	CloseUnsupportedData
	closeReserved1004 // reserved, never sent on the wire
	CloseNoStatusRcvd
	closeAbnormalClosure // never sent on the wire, local-only signal
	CloseInvalidFramePayloadData
	ClosePolicyViolation
	CloseMessageTooBig
	CloseMandatoryExtension
	CloseInternalError
	// CloseServiceRestart, CloseTryAgainLater and CloseBadGateway are valid
	// IANA-registered codes but are not permitted on the wire by this
	// package's policy; see ValidWire.
	CloseServiceRestart
	CloseTryAgainLater
	CloseBadGateway
	closeTLSHandshake // never sent on the wire, local-only signal
)

// ValidWire reports whether c is a code an endpoint is allowed to put on
// the wire in a close frame: 1000-1003, 1007-1011, and the
// application-defined range 3000-4999. This deliberately excludes
// 1012-1014 (CloseServiceRestart/CloseTryAgainLater/CloseBadGateway) along
// with the reserved and local-only codes, matching the original
// implementation's is_valid check.
func (c CloseCode) ValidWire() bool {
	switch {
	case c >= CloseNormalClosure && c <= CloseUnsupportedData:
		return true
	case c >= CloseInvalidFramePayloadData && c <= CloseInternalError:
		return true
	case c >= 3000 && c <= 4999:
		return true
	default:
		return false
	}
}

// CloseFrame is the parsed payload of a WebSocket close frame.
type CloseFrame struct {
	Code   CloseCode
	Reason string
}

func (cf CloseFrame) Error() string {
	return fmt.Sprintf("close frame: code=%d reason=%q", cf.Code, cf.Reason)
}

const maxCloseReason = maxControlPayload - 2

// MarshalPayload serializes cf into a close frame payload. An empty Code
// marshals to an empty payload per RFC 6455 section 5.5.1.
func (cf CloseFrame) MarshalPayload() ([]byte, error) {
	if cf.Code == 0 {
		return nil, nil
	}
	if !cf.Code.ValidWire() {
		return nil, fmt.Errorf("cannot marshal invalid close code %d", cf.Code)
	}
	if len(cf.Reason) > maxCloseReason {
		return nil, fmt.Errorf("close reason %q too long, max %d bytes", cf.Reason, maxCloseReason)
	}

	buf := make([]byte, 2+len(cf.Reason))
	binary.BigEndian.PutUint16(buf, uint16(cf.Code))
	copy(buf[2:], cf.Reason)
	return buf, nil
}

func parseClosePayload(p []byte) (CloseFrame, error) {
	if len(p) == 0 {
		return CloseFrame{Code: CloseNoStatusRcvd}, nil
	}
	if len(p) < 2 {
		return CloseFrame{}, fmt.Errorf("close payload too small, must be at least 2 bytes: %d", len(p))
	}

	cf := CloseFrame{
		Code:   CloseCode(binary.BigEndian.Uint16(p)),
		Reason: string(p[2:]),
	}

	if !cf.Code.ValidWire() {
		return CloseFrame{}, fmt.Errorf("invalid received close code %d", cf.Code)
	}

	return cf, nil
}
