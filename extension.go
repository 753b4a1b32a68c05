package wsconn

// Extension hooks into frame encode/decode for a negotiated WebSocket
// extension such as permessage-deflate. See
// https://tools.ietf.org/html/rfc6455#section-9 and RFC 7692.
type Extension interface {
	// Name is the extension token as it appears in Sec-WebSocket-Extensions,
	// e.g. "permessage-deflate".
	Name() string

	// ClaimsRSV1 reports whether this extension uses the RSV1 bit to flag
	// frames it has transformed. permessage-deflate does; most hypothetical
	// extensions built on RSV2/RSV3 would report false here.
	ClaimsRSV1() bool

	// EncodeMessage transforms an outgoing message payload before
	// framing. It returns the transformed bytes and whether RSV1 should be
	// set on the first frame of the message.
	EncodeMessage(op OpCode, data []byte) (out []byte, setRSV1 bool, err error)

	// DecodeMessage reverses EncodeMessage on a fully reassembled incoming
	// message. rsv1 reports whether the first frame of the message had
	// RSV1 set.
	DecodeMessage(op OpCode, rsv1 bool, data []byte) ([]byte, error)

	// Offer returns this extension's Sec-WebSocket-Extensions offer
	// fragment, e.g. "permessage-deflate; client_max_window_bits".
	Offer() string
}

// negotiateRSV picks the extension, if any, among exts that claims RSV1,
// rejecting a config that asks for more than one since this package only
// tracks one RSV1 claimant at a time.
func negotiateRSV(exts []Extension) (Extension, error) {
	var claimant Extension
	for _, e := range exts {
		if e.ClaimsRSV1() {
			if claimant != nil {
				return nil, errInvalidExtension("multiple extensions claim RSV1")
			}
			claimant = e
		}
	}
	return claimant, nil
}

func errInvalidExtension(reason string) *CoreError {
	return &CoreError{Kind: ErrInvalidExtension, Reason: reason}
}
