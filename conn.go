package wsconn

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/coderframe/wsconn/internal/atomicint"
	"github.com/coderframe/wsconn/internal/bufpool"
	"github.com/coderframe/wsconn/internal/errd"
)

// ConnectionState is the lifecycle state of a Connection, following the
// Open -> Closing -> Closed progression. Stored atomically so it can be
// shared safely between the two halves returned by Split.
type ConnectionState int32

// Connection states.
const (
	StateOpen ConnectionState = iota
	StateClosing
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsActive reports whether the connection can still do anything useful.
// Naming adopted from the Rust original's connection/state.rs.
func (s ConnectionState) IsActive() bool { return s != StateClosed }

// CanSend reports whether new application messages may be sent.
func (s ConnectionState) CanSend() bool { return s == StateOpen }

// CanReceive reports whether inbound frames should still be processed.
func (s ConnectionState) CanReceive() bool { return s == StateOpen || s == StateClosing }

// atomicConnState is the small synchronized state flag shared between a
// Connection and its split Reader/Writer halves.
type atomicConnState struct {
	v int32
}

func (a *atomicConnState) load() ConnectionState {
	return ConnectionState(atomic.LoadInt32(&a.v))
}

func (a *atomicConnState) store(s ConnectionState) {
	atomic.StoreInt32(&a.v, int32(s))
}

// advanceTo transitions to s if the current state is strictly less advanced
// than s (Open < Closing < Closed), returning whether it did.
func (a *atomicConnState) advanceTo(s ConnectionState) bool {
	for {
		cur := a.load()
		if cur >= s {
			return false
		}
		if atomic.CompareAndSwapInt32(&a.v, int32(cur), int32(s)) {
			return true
		}
	}
}

// Connection is a single, already-upgraded WebSocket connection layered
// over an abstract io.ReadWriteCloser. It owns framing, masking, message
// reassembly, the close handshake and extension application.
//
// A Connection is not safe for concurrent use on its own: frame writes are
// serialized by an internal mutex, but Recv takes no lock, and interleaving
// calls from multiple goroutines requires Split. Every error from Recv or Send closes the
// connection, mirroring the teacher's Conn.
type Connection struct {
	stream io.ReadWriteCloser
	cfg    Config

	state *atomicConnState

	br  *bufio.Reader
	asm *assembler
	ext Extension

	bw      *bufio.Writer
	writeMu sync.Mutex

	closeMu    sync.Mutex
	closeErr   error
	closed     chan struct{}
	closeTimer *time.Timer

	activePingsMu sync.Mutex
	activePings   map[string]chan<- struct{}
	pingCounter   atomicint.Int64
	limiter       *rateLimiter

	split bool
}

// New wraps stream as a WebSocket connection. cfg.Role must be set; the
// rest of cfg falls back to DefaultConfig(cfg.Role)'s values where zero.
func New(stream io.ReadWriteCloser, cfg Config) (_ *Connection, err error) {
	defer errd.Wrap(&err, "failed to create connection")

	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}
	if cfg.CloseHandshakeTimeout == 0 {
		cfg.CloseHandshakeTimeout = 5 * time.Second
	}

	ext, err := negotiateRSV(cfg.Extensions)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		stream:      stream,
		cfg:         cfg,
		state:       &atomicConnState{},
		br:          bufpool.GetReader(stream),
		bw:          bufpool.GetWriter(stream),
		asm:         newAssembler(cfg.Limits),
		ext:         ext,
		closed:      make(chan struct{}),
		activePings: make(map[string]chan<- struct{}),
		limiter:     newRateLimiter(cfg.PingInterval),
	}

	runtime.SetFinalizer(c, func(c *Connection) {
		c.fail(fmt.Errorf("connection garbage collected while open"))
	})

	c.state.store(StateOpen)
	if c.limiter != nil {
		go c.runIdlePingLoop()
	}

	return c, nil
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() ConnectionState {
	return c.state.load()
}

// IsOpen reports whether the connection can still send and receive.
func (c *Connection) IsOpen() bool {
	return c.State() == StateOpen
}

func (c *Connection) setCloseErr(err error) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closeErr == nil {
		c.closeErr = err
	}
}

// fail transitions the connection straight to Closed without attempting a
// close handshake, for transport errors where writing one more frame would
// just fail again.
func (c *Connection) fail(err error) {
	if !c.state.advanceTo(StateClosed) {
		return
	}
	c.setCloseErr(err)

	c.closeMu.Lock()
	if c.closeTimer != nil {
		c.closeTimer.Stop()
	}
	c.closeMu.Unlock()

	runtime.SetFinalizer(c, nil)
	close(c.closed)
	c.stream.Close()

	// The reader may still be blocked in a peer's goroutine via Split; the
	// pooled buffers are only returned once nothing can still be touching
	// them, which for a plain (non-split) Connection is always true here
	// since fail is only ever reached from the same goroutine driving
	// Send/Recv.
	if !c.split {
		c.writeMu.Lock()
		bufpool.PutWriter(c.bw)
		c.writeMu.Unlock()
		bufpool.PutReader(c.br)
	}
}

// ---- sending ----

// SendText sends s as a text message, split across multiple frames per
// cfg.FragmentSize if it's non-zero and s is larger than it.
func (c *Connection) SendText(s string) error {
	return c.send(OpText, []byte(s))
}

// SendBinary sends p as a binary message, split across multiple frames per
// cfg.FragmentSize if it's non-zero and p is larger than it.
func (c *Connection) SendBinary(p []byte) error {
	return c.send(OpBinary, p)
}

func (c *Connection) send(op OpCode, data []byte) error {
	if !c.State().CanSend() {
		return errConnectionClosed(0, "")
	}

	rsv1 := false
	if c.ext != nil {
		var err error
		data, rsv1, err = c.ext.EncodeMessage(op, data)
		if err != nil {
			c.fail(err)
			return err
		}
	}

	fragSize := c.cfg.FragmentSize
	if fragSize <= 0 || len(data) <= fragSize {
		if err := c.cfg.Limits.checkFrameSize(len(data)); err != nil {
			c.fail(err)
			return err
		}
		return c.writeFrame(frameHeader{fin: true, rsv1: rsv1, op: op}, data)
	}

	return c.sendFragmented(op, rsv1, data, fragSize)
}

// sendFragmented splits data into fragSize-sized chunks and writes them as
// a fragment chain: the first frame carries op (and rsv1, per RFC 6455
// section 5.2 / RFC 7692, which only allow RSV1 on a fragmented message's
// first frame), every following frame is OpContinuation, and only the
// last has FIN set.
func (c *Connection) sendFragmented(op OpCode, rsv1 bool, data []byte, fragSize int) error {
	first := true
	for {
		n := fragSize
		if n > len(data) {
			n = len(data)
		}
		chunk := data[:n]
		rest := data[n:]

		if err := c.cfg.Limits.checkFrameSize(len(chunk)); err != nil {
			c.fail(err)
			return err
		}

		h := frameHeader{fin: len(rest) == 0, op: OpContinuation}
		if first {
			h.op = op
			h.rsv1 = rsv1
			first = false
		}
		if err := c.writeFrame(h, chunk); err != nil {
			return err
		}

		data = rest
		if len(data) == 0 {
			return nil
		}
	}
}

// Ping sends a ping frame and blocks until the matching pong arrives or the
// connection closes.
func (c *Connection) Ping() error {
	id := c.pingCounter.Increment(1)
	payload := strconv.FormatInt(id, 10)

	pong := make(chan struct{})
	c.activePingsMu.Lock()
	c.activePings[payload] = pong
	c.activePingsMu.Unlock()
	defer func() {
		c.activePingsMu.Lock()
		delete(c.activePings, payload)
		c.activePingsMu.Unlock()
	}()

	if err := c.writeFrame(frameHeader{fin: true, op: OpPing}, []byte(payload)); err != nil {
		return err
	}

	select {
	case <-c.closed:
		return c.closeErr
	case <-pong:
		return nil
	}
}

func (c *Connection) writePong(payload []byte) error {
	return c.writeFrame(frameHeader{fin: true, op: OpPong}, payload)
}

// deadliner is the subset of net.Conn that setReadDeadline and
// setWriteDeadline rely on. Streams that don't implement it (e.g. an
// in-memory test double) simply never get a deadline set, rather than
// erroring.
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

func (c *Connection) setWriteDeadline() {
	if c.cfg.WriteTimeout <= 0 {
		return
	}
	if d, ok := c.stream.(deadliner); ok {
		d.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
}

func (c *Connection) setReadDeadline() {
	if c.cfg.ReadTimeout <= 0 {
		return
	}
	if d, ok := c.stream.(deadliner); ok {
		d.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}

// writeFrame masks (if client), serializes and flushes a single frame.
func (c *Connection) writeFrame(h frameHeader, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.setWriteDeadline()

	if c.cfg.Role == RoleClient {
		h.masked = true
		if _, err := io.ReadFull(rand.Reader, h.maskKey[:]); err != nil {
			err = errIO(err)
			c.fail(err)
			return err
		}
		maskPayload := append([]byte(nil), payload...)
		applyMask(h.maskKey, 0, maskPayload)
		payload = maskPayload
	}

	h.payloadLength = int64(len(payload))

	buf := writeFrameHeader(make([]byte, 0, 14), h)
	if _, err := c.bw.Write(buf); err != nil {
		err = errIO(err)
		c.fail(err)
		return err
	}
	if len(payload) > 0 {
		if _, err := c.bw.Write(payload); err != nil {
			err = errIO(err)
			c.fail(err)
			return err
		}
	}
	if err := c.bw.Flush(); err != nil {
		err = errIO(err)
		c.fail(err)
		return err
	}

	if c.limiter != nil {
		c.limiter.markActivity()
	}

	return nil
}

// ---- receiving ----

// Recv blocks until a complete application message (text or binary)
// arrives, transparently answering pings, recording pongs and running the
// close handshake on a close frame. It never itself returns a Message with
// Kind KindPing/KindPong; those are handled internally. It does return a
// KindClose Message once, for the frame that initiated (or echoed) a close,
// so callers can inspect the code/reason, and thereafter returns the
// stored close error.
func (c *Connection) Recv() (Message, error) {
	for {
		if !c.State().CanReceive() {
			return Message{}, c.closeErr
		}

		f, err := c.readFrame()
		if err != nil {
			c.fail(err)
			return Message{}, err
		}

		// RSV bits are checked before any opcode-specific handling: RFC
		// 6455 section 5.2 applies the "must be zero unless negotiated"
		// rule to every frame, control or data. No negotiated extension
		// ever claims an RSV bit on a control frame, so a control frame is
		// rejected outright if any of RSV1/2/3 is set.
		if f.header.op.IsControl() {
			if f.header.rsv1 || f.header.rsv2 || f.header.rsv3 {
				err := errReservedBitsSet()
				c.terminateWith(err)
				return Message{}, err
			}

			msg, handled, err := c.handleControl(f)
			if err != nil {
				return Message{}, err
			}
			if handled {
				return msg, nil
			}
			continue
		}

		if f.header.rsv2 || f.header.rsv3 || (f.header.rsv1 && c.ext == nil) {
			err := errReservedBitsSet()
			c.terminateWith(err)
			return Message{}, err
		}

		// Decompression happens once the message is fully reassembled; the
		// assembler is fed the raw compressed bytes for intermediate
		// fragments and only the final call below triggers decode,
		// matching permessage-deflate's per-message framing. compressed
		// reflects the message's FIRST frame RSV1, not f's own RSV1 — by
		// the time fin arrives f is the final continuation frame, whose
		// RSV1 is always 0.
		msg, complete, compressed, err := c.asm.addFrame(f, f.header.rsv1)
		if err != nil {
			c.terminateWith(err)
			return Message{}, err
		}
		if !complete {
			continue
		}

		if compressed && c.ext != nil {
			compressedSize := len(msg.data)

			data, err := c.ext.DecodeMessage(f.header.op, true, msg.data)
			if err != nil {
				c.terminateWith(err)
				return Message{}, err
			}

			limits := c.cfg.Limits
			if limits.MaxMessageSize > 0 && len(data) > limits.MaxMessageSize {
				err := errMessageTooLarge(len(data), limits.MaxMessageSize)
				c.terminateWith(err)
				return Message{}, err
			}
			if limits.MaxCompressionRatio > 0 && compressedSize > 0 &&
				len(data)/compressedSize > limits.MaxCompressionRatio {
				err := errInvalidExtension("decompressed message exceeds configured compression ratio limit")
				c.terminateWith(err)
				return Message{}, err
			}

			msg.data = data

			if msg.kind == KindText && !utf8.Valid(data) {
				err := errInvalidUTF8()
				c.terminateWith(err)
				return Message{}, err
			}
		}

		return msg, nil
	}
}

// handleControl processes a just-read control frame. handled is true when
// the caller should return msg to its own caller (close frames only).
func (c *Connection) handleControl(f frame) (msg Message, handled bool, err error) {
	switch f.header.op {
	case OpPing:
		if err := c.writePong(f.payload); err != nil {
			return Message{}, false, err
		}
		return Message{}, false, nil

	case OpPong:
		c.activePingsMu.Lock()
		pong, ok := c.activePings[string(f.payload)]
		c.activePingsMu.Unlock()
		if ok {
			close(pong)
		}
		return Message{}, false, nil

	case OpClose:
		cf, perr := parseClosePayload(f.payload)
		if perr != nil {
			cerr := errInvalidCloseCode(cf.Code)
			c.terminateWith(cerr)
			return Message{}, false, cerr
		}

		if c.state.advanceTo(StateClosing) {
			// Peer-initiated: echo the close frame, then finish closing.
			echo, _ := cf.MarshalPayload()
			c.writeFrame(frameHeader{fin: true, op: OpClose}, echo)
		}

		cerr := errConnectionClosed(cf.Code, cf.Reason)
		c.fail(cerr)
		return closeMessage(cf), true, nil

	default:
		err := errReservedOpcode(f.header.op)
		c.terminateWith(err)
		return Message{}, false, err
	}
}

// terminateWith sends a best-effort close frame carrying the close code
// for err's kind, then fails the connection. Used for protocol violations
// detected locally.
func (c *Connection) terminateWith(err error) {
	ce, ok := err.(*CoreError)
	code := CloseProtocolError
	if ok {
		code = closeCodeForError(ce)
	}
	cf := CloseFrame{Code: code}
	if p, berr := cf.MarshalPayload(); berr == nil {
		c.writeFrame(frameHeader{fin: true, op: OpClose}, p)
	}
	c.fail(err)
}

// readFrame reads and validates exactly one frame header and payload,
// unmasking it if masked. Control-frame size/fragmentation rules are
// enforced in parseFrameHeader.
func (c *Connection) readFrame() (frame, error) {
	c.setReadDeadline()

	for {
		h, err := c.fillHeader()
		if err != nil {
			return frame{}, err
		}

		if err := c.cfg.Limits.checkFrameSize(int(h.payloadLength)); err != nil {
			return frame{}, err
		}

		payload := make([]byte, h.payloadLength)
		if _, err := io.ReadFull(c.br, payload); err != nil {
			return frame{}, errIO(err)
		}

		if h.masked {
			applyMask(h.maskKey, 0, payload)
		}

		return frame{header: h, payload: payload}, nil
	}
}

// fillHeader incrementally reads bytes from c.br until a full frame header
// is available, using parseFrameHeader's NeedMore contract via bufio.Peek.
func (c *Connection) fillHeader() (frameHeader, error) {
	want := 2
	for {
		peek, err := c.br.Peek(want)
		if len(peek) < want {
			if err != nil && err != io.EOF {
				return frameHeader{}, errIO(err)
			}
			if len(peek) > 0 {
				// The stream ended partway through a header: a genuine
				// incomplete frame, distinct from a clean EOF at a frame
				// boundary (len(peek) == 0, handled below).
				return frameHeader{}, errIncompleteFrame(want - len(peek))
			}
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return frameHeader{}, errIO(err)
		}
		h, consumed, need, perr := parseFrameHeader(peek, c.cfg.isServer(), c.cfg.AcceptUnmaskedFrames)
		if perr != nil {
			return frameHeader{}, perr
		}
		if need > 0 {
			want += need
			continue
		}
		if _, err := c.br.Discard(consumed); err != nil {
			return frameHeader{}, errIO(err)
		}
		return h, nil
	}
}

// validateCloseRequest rejects a requested close code/reason per RFC 6455
// section 7.4: a reserved code (1004/1005/1006/1015, none of which
// ValidWire accepts) or a reason over maxCloseReason bytes is an invalid
// request from the caller, not a connection-level failure, so it must
// leave the connection's state untouched and send nothing.
func validateCloseRequest(code CloseCode, reason string) error {
	if code != 0 && !code.ValidWire() {
		return errInvalidCloseCode(code)
	}
	if len(reason) > maxCloseReason {
		return errControlFrameTooLarge(2 + len(reason))
	}
	return nil
}

// initiateClose transitions to StateClosing and sends a close frame with
// code and reason, then arms a deadline that fails the connection if the
// peer's answering close frame never arrives. It does not itself wait for
// that frame: Connection.Close pumps its own Recv loop afterward, since it
// owns the only reader; Writer.Close, which shares c.br with a paired
// Reader, leaves the echo-pump to whichever goroutine is driving that
// Reader's Recv loop instead of reading out from under it. alreadyClosing
// is true when another call already owns the handshake, in which case
// callers should just wait on c.closed. If code/reason fail
// validateCloseRequest, writeErr is returned with the connection left
// exactly as it was (state unchanged, no frame sent).
func (c *Connection) initiateClose(code CloseCode, reason string) (writeErr error, alreadyClosing bool) {
	if err := validateCloseRequest(code, reason); err != nil {
		return err, false
	}

	if !c.state.advanceTo(StateClosing) {
		return nil, true
	}

	cf := CloseFrame{Code: code, Reason: reason}
	p, err := cf.MarshalPayload()
	if err != nil {
		// Unreachable given validateCloseRequest above; kept as a
		// defensive fallback rather than trusting MarshalPayload's
		// validation to stay perfectly in sync with it.
		c.cfg.logf("wsconn: failed to marshal close frame: %v", err)
		cf = CloseFrame{Code: CloseInternalError}
		p, _ = cf.MarshalPayload()
	}

	writeErr = c.writeFrame(frameHeader{fin: true, op: OpClose}, p)

	c.closeMu.Lock()
	c.closeTimer = time.AfterFunc(c.cfg.CloseHandshakeTimeout, func() {
		c.fail(fmt.Errorf("timed out waiting for peer close frame"))
	})
	c.closeMu.Unlock()

	return writeErr, false
}

// Close performs the close handshake: it sends a close frame with code and
// reason, then waits up to cfg.CloseHandshakeTimeout for the peer's
// answering close frame before tearing down the connection either way. An
// invalid code or oversize reason is rejected immediately, with the
// connection left Open and nothing sent.
func (c *Connection) Close(code CloseCode, reason string) error {
	writeErr, alreadyClosing := c.initiateClose(code, reason)
	if alreadyClosing {
		<-c.closed
		return c.closeErr
	}
	if writeErr != nil && c.State() == StateOpen {
		return writeErr
	}

	// Actively pump frames (answering pings, discarding data) until the
	// peer's answering close frame arrives and handleControl calls fail,
	// or the deadline armed by initiateClose fires first. This is the
	// second phase of the two-phase close handshake; unlike the teacher
	// (which documents not waiting for the peer at all), this package's
	// Connection owns its own reads so it can wait here without requiring
	// a second goroutine.
	for c.State() != StateClosed {
		if _, err := c.Recv(); err != nil {
			break
		}
	}

	if writeErr != nil {
		return writeErr
	}
	return nil
}

// Split returns independent Reader and Writer handles sharing this
// connection's state flag, so one goroutine may read while another writes.
func (c *Connection) Split() (*Reader, *Writer) {
	c.split = true
	return &Reader{c: c}, &Writer{c: c}
}
