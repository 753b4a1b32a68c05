package wsconn

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"sync"

	"github.com/coderframe/wsconn/internal/bufpool"
)

// deflateMessageTail is the sync-flush marker flate.Writer.Flush emits at
// the end of every compressed message. It is stripped from outgoing
// messages by trimLastFourBytesWriter and appended back to incoming ones
// before decompressing, since WebSocket framing (not flate) marks where a
// message ends. Grounded in the teacher's compress_notjs.go.
const deflateMessageTail = "\x00\x00\xff\xff"

// DeflateParams configures permessage-deflate negotiation. Field names
// follow the Rust original's extensions/deflate.rs.
type DeflateParams struct {
	// ClientNoContextTakeover disables the client's compression context
	// from carrying over between messages.
	ClientNoContextTakeover bool
	// ServerNoContextTakeover disables the server's compression context
	// from carrying over between messages.
	ServerNoContextTakeover bool
	// ClientMaxWindowBits is the client's LZ77 window size, 8-15, as
	// advertised by Offer. Zero means the RFC 7692 default of 15. It is not
	// applied to compression or decompression, which always use
	// compress/flate's fixed 32KiB window.
	ClientMaxWindowBits int
	// ServerMaxWindowBits is the server's LZ77 window size, 8-15, as
	// advertised by Offer. Zero means 15. Like ClientMaxWindowBits, it is
	// not applied to compression or decompression.
	ServerMaxWindowBits int
}

// NegotiateDeflate builds a permessage-deflate Extension from params,
// applying RFC 7692 defaults for unset window bits.
func NegotiateDeflate(params DeflateParams) *DeflateExtension {
	if params.ClientMaxWindowBits == 0 {
		params.ClientMaxWindowBits = 15
	}
	if params.ServerMaxWindowBits == 0 {
		params.ServerMaxWindowBits = 15
	}
	return &DeflateExtension{params: params}
}

// DeflateExtension implements permessage-deflate (RFC 7692) as an
// Extension. Grounded in the teacher's compress.go/compress_notjs.go:
// pooled flate.Reader/flate.Writer and a trimLastFourBytesWriter to strip
// the sync-flush tail before sending.
//
// Every message is compressed and decompressed independently; there is no
// persisted LZ77 dictionary across messages. That's RFC 7692-correct when
// *_no_context_takeover is negotiated, and a deliberate simplification
// otherwise: compress/flate's Writer/Reader only take a dictionary at
// construction (NewWriterDict/NewReaderDict), not via Reset, so keeping one
// alive across messages would mean giving up the sync.Pool reuse below for
// every connection that negotiates context takeover.
type DeflateExtension struct {
	params DeflateParams
	mu     sync.Mutex
}

func (d *DeflateExtension) Name() string     { return "permessage-deflate" }
func (d *DeflateExtension) ClaimsRSV1() bool { return true }

func (d *DeflateExtension) Offer() string {
	s := "permessage-deflate"
	if d.params.ClientNoContextTakeover {
		s += "; client_no_context_takeover"
	}
	if d.params.ServerNoContextTakeover {
		s += "; server_no_context_takeover"
	}
	if d.params.ClientMaxWindowBits != 15 {
		s += fmt.Sprintf("; client_max_window_bits=%d", d.params.ClientMaxWindowBits)
	}
	if d.params.ServerMaxWindowBits != 15 {
		s += fmt.Sprintf("; server_max_window_bits=%d", d.params.ServerMaxWindowBits)
	}
	return s
}

func (d *DeflateExtension) EncodeMessage(op OpCode, data []byte) ([]byte, bool, error) {
	if op.IsControl() {
		return data, false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out := bufpool.Get()
	defer bufpool.Put(out)
	tw := &trimLastFourBytesWriter{w: out}
	fw := getFlateWriter(tw)
	defer putFlateWriter(fw)

	if _, err := fw.Write(data); err != nil {
		return nil, false, errIO(err)
	}
	if err := fw.Flush(); err != nil {
		return nil, false, errIO(err)
	}

	return append([]byte(nil), out.Bytes()...), true, nil
}

func (d *DeflateExtension) DecodeMessage(op OpCode, rsv1 bool, data []byte) ([]byte, error) {
	if op.IsControl() || !rsv1 {
		return data, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Restore the stripped sync-flush marker, then add an empty final stored
	// block so flate.Reader ends with io.EOF instead of io.ErrUnexpectedEOF.
	buf := append(append([]byte{}, data...), deflateMessageTail...)
	buf = append(buf, "\x01\x00\x00\xff\xff"...)
	src := bytes.NewReader(buf)
	fr := getFlateReader(src, nil)
	defer putFlateReader(fr)

	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, errIO(fmt.Errorf("permessage-deflate: %w", err))
	}

	return out, nil
}

type trimLastFourBytesWriter struct {
	w    io.Writer
	tail []byte
}

func (tw *trimLastFourBytesWriter) Write(p []byte) (int, error) {
	extra := len(tw.tail) + len(p) - 4

	if extra <= 0 {
		tw.tail = append(tw.tail, p...)
		return len(p), nil
	}

	if extra > len(tw.tail) {
		extra = len(tw.tail)
	}
	if extra > 0 {
		if _, err := tw.w.Write(tw.tail[:extra]); err != nil {
			return 0, err
		}
		tw.tail = tw.tail[extra:]
	}

	if len(p) <= 4 {
		tw.tail = append(tw.tail, p...)
		return len(p), nil
	}

	tw.tail = append(tw.tail, p[len(p)-4:]...)
	p = p[:len(p)-4]
	n, err := tw.w.Write(p)
	return n + 4, err
}

var flateReaderPool sync.Pool

func getFlateReader(r io.Reader, dict []byte) io.Reader {
	fr, ok := flateReaderPool.Get().(io.Reader)
	if !ok {
		return flate.NewReaderDict(r, dict)
	}
	fr.(flate.Resetter).Reset(r, dict)
	return fr
}

func putFlateReader(fr io.Reader) {
	flateReaderPool.Put(fr)
}

var flateWriterPool sync.Pool

func getFlateWriter(w io.Writer) *flate.Writer {
	fw, ok := flateWriterPool.Get().(*flate.Writer)
	if !ok {
		fw, _ = flate.NewWriter(w, flate.BestSpeed)
		return fw
	}
	fw.Reset(w)
	return fw
}

func putFlateWriter(w *flate.Writer) {
	flateWriterPool.Put(w)
}
