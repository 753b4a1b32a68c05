// Package wsconn is a minimal and idiomatic implementation of the WebSocket
// protocol core: frame codec, masking, message reassembly, the connection
// state machine and permessage-deflate.
//
// It does not parse the HTTP/1.1 upgrade handshake or speak TLS; callers
// hand it an already-upgraded io.ReadWriteCloser via New. The handshake
// logic that belongs here is AcceptKey (deriving Sec-WebSocket-Accept),
// ValidUpgradeTokens, and BuildExtensionOffer/ParseNegotiatedExtension for
// the Sec-WebSocket-Extensions header.
//
// See https://tools.ietf.org/html/rfc6455 and
// https://tools.ietf.org/html/rfc7692.
package wsconn
