package wsconn

import (
	"log"
	"time"
)

// Role identifies which side of the connection this endpoint plays, which
// governs masking direction (RFC 6455 section 5.3: clients mask, servers
// don't) and whether inbound frames must be masked or unmasked.
type Role int

// Roles.
const (
	RoleServer Role = iota
	RoleClient
)

// Limits bounds the resources a single Connection may consume, mirroring
// the Rust original's config.rs Limits struct.
type Limits struct {
	// MaxFrameSize caps the payload length of any single frame. Zero means
	// unbounded.
	MaxFrameSize int
	// MaxMessageSize caps the total reassembled size of a message across
	// all its fragments. Zero means unbounded.
	MaxMessageSize int
	// MaxFragmentCount caps how many frames may make up one message. Zero
	// means unbounded.
	MaxFragmentCount int
	// MaxHandshakeSize is the size bound for the HTTP upgrade handshake.
	// This package does not parse the handshake and never reads this field.
	MaxHandshakeSize int
	// MaxCompressionRatio caps decompressed-size / compressed-size for an
	// incoming permessage-deflate message, rejecting payloads shaped like a
	// decompression bomb. Zero disables the check.
	MaxCompressionRatio int
}

// DefaultLimits returns the limits suitable for a general-purpose server:
// 16MiB frames, 64MiB messages, 128 fragments, 8KiB handshake.
func DefaultLimits() Limits {
	return Limits{
		MaxFrameSize:     16 << 20,
		MaxMessageSize:   64 << 20,
		MaxFragmentCount: 128,
		MaxHandshakeSize: 8 << 10,
	}
}

// LimitsEmbedded returns tighter limits suitable for memory-constrained
// deployments: 64KiB frames, 256KiB messages, 16 fragments, 4KiB handshake.
func LimitsEmbedded() Limits {
	return Limits{
		MaxFrameSize:     64 << 10,
		MaxMessageSize:   256 << 10,
		MaxFragmentCount: 16,
		MaxHandshakeSize: 4 << 10,
	}
}

// LimitsUnrestricted returns very large limits for trusted peers where
// resource exhaustion is not a concern: 1GiB frames, 4GiB messages, 1024
// fragments, 64KiB handshake.
func LimitsUnrestricted() Limits {
	return Limits{
		MaxFrameSize:     1 << 30,
		MaxMessageSize:   1 << 32,
		MaxFragmentCount: 1024,
		MaxHandshakeSize: 64 << 10,
	}
}

// checkFrameSize returns a CoreError if size exceeds l.MaxFrameSize.
func (l Limits) checkFrameSize(size int) error {
	if l.MaxFrameSize > 0 && size > l.MaxFrameSize {
		return errFrameTooLarge(size, l.MaxFrameSize)
	}
	return nil
}

// Config configures a Connection. The zero value is not usable; build one
// with DefaultConfig and override fields as needed, the way the teacher's
// DialOptions/AcceptOptions are built.
type Config struct {
	// Role determines masking direction; required.
	Role Role

	// Limits bounds frame/message/fragment sizes. Defaults to
	// DefaultLimits() if zero.
	Limits Limits

	// AcceptUnmaskedFrames relaxes RFC 6455 section 5.1 for servers behind
	// a trusted proxy that has already validated masking. Ignored for
	// clients, which always reject masked frames from the server.
	AcceptUnmaskedFrames bool

	// FragmentSize, if non-zero, splits an outbound message larger than
	// this many bytes across multiple frames (first Text/Binary, middle
	// Continuation, all but the last with FIN=0) instead of sending it as
	// a single frame. Zero sends every message unfragmented.
	FragmentSize int

	// ReadTimeout bounds how long a single Recv call may block reading
	// from the underlying stream. Zero means no timeout.
	ReadTimeout time.Duration
	// WriteTimeout bounds how long a single Send call may block writing.
	// Zero means no timeout.
	WriteTimeout time.Duration
	// CloseHandshakeTimeout bounds how long Close waits for the peer's
	// answering close frame before giving up. Defaults to 5 seconds,
	// matching the teacher's close.go.
	CloseHandshakeTimeout time.Duration

	// PingInterval, if non-zero, sends an idle ping on this cadence when
	// no other frames have been sent, via a golang.org/x/time/rate
	// limiter so bursts of application traffic don't also trigger pings.
	PingInterval time.Duration

	// Extensions are negotiated and applied in order; typically just a
	// *DeflateExtension from NegotiateDeflate.
	Extensions []Extension

	// Logger receives the one best-effort diagnostic this package ever
	// emits directly (a failure to marshal an outgoing close frame), the
	// same narrow use the teacher makes of the standard logger. Nil
	// disables it.
	Logger *log.Logger
}

// DefaultConfig returns a Config with DefaultLimits and a 5 second close
// handshake timeout, ready for the caller to set Role and fill in the rest.
func DefaultConfig(role Role) Config {
	return Config{
		Role:                  role,
		Limits:                DefaultLimits(),
		CloseHandshakeTimeout: 5 * time.Second,
	}
}

func (c Config) isServer() bool {
	return c.Role == RoleServer
}

func (c Config) logf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}
