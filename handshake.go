package wsconn

import (
	"crypto/sha1"
	"encoding/base64"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// handshakeGUID is the magic value RFC 6455 section 1.3 defines for
// deriving Sec-WebSocket-Accept from Sec-WebSocket-Key.
const handshakeGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey derives the Sec-WebSocket-Accept header value for the given
// Sec-WebSocket-Key request header value, per RFC 6455 section 1.3. This is
// the one piece of handshake logic this package owns; parsing the rest of
// the HTTP/1.1 upgrade request is the caller's job.
func AcceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey))
	h.Write([]byte(handshakeGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ValidUpgradeTokens reports whether the Connection and Upgrade header
// values from an HTTP/1.1 upgrade request satisfy RFC 6455 section 4.2.1,
// using golang.org/x/net/http/httpguts the way the teacher's accept.go
// validates the same headers.
func ValidUpgradeTokens(connectionHeader, upgradeHeader string) bool {
	return httpguts.HeaderValuesContainsToken([]string{connectionHeader}, "Upgrade") &&
		httpguts.HeaderValuesContainsToken([]string{upgradeHeader}, "websocket")
}

// BuildExtensionOffer renders the Sec-WebSocket-Extensions offer header
// value for the given extensions, comma-joining each Extension's Offer().
func BuildExtensionOffer(exts []Extension) string {
	offers := make([]string, len(exts))
	for i, e := range exts {
		offers[i] = e.Offer()
	}
	return strings.Join(offers, ", ")
}

// ParseNegotiatedExtension reports whether header (a server's
// Sec-WebSocket-Extensions response value) names ext, i.e. whether the
// server agreed to use it.
func ParseNegotiatedExtension(header string, ext Extension) bool {
	for _, part := range strings.Split(header, ",") {
		token := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(token, ext.Name()) {
			return true
		}
	}
	return false
}
