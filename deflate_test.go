package wsconn

import (
	"bytes"
	"strings"
	"testing"
)

func Test_DeflateExtension_roundTrip(t *testing.T) {
	t.Parallel()

	d := NegotiateDeflate(DeflateParams{})
	want := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 50))

	encoded, rsv1, err := d.EncodeMessage(OpText, want)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	if !rsv1 {
		t.Fatal("expected EncodeMessage to set rsv1 for a data frame")
	}
	if bytes.Equal(encoded, want) {
		t.Fatal("expected compressed output to differ from input for repetitive data")
	}

	decoded, err := d.DecodeMessage(OpText, true, encoded)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if !bytes.Equal(decoded, want) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(decoded), len(want))
	}
}

func Test_DeflateExtension_controlFramesPassThrough(t *testing.T) {
	t.Parallel()

	d := NegotiateDeflate(DeflateParams{})
	payload := []byte("ping-payload")

	out, rsv1, err := d.EncodeMessage(OpPing, payload)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	if rsv1 {
		t.Fatal("control frames must never set rsv1")
	}
	if !bytes.Equal(out, payload) {
		t.Fatal("expected control frame payload to pass through unmodified")
	}
}

func Test_DeflateExtension_decodeIgnoresUnsetRSV1(t *testing.T) {
	t.Parallel()

	d := NegotiateDeflate(DeflateParams{})
	payload := []byte("not actually compressed")

	out, err := d.DecodeMessage(OpText, false, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatal("expected passthrough when rsv1 is false")
	}
}

func Test_DeflateExtension_Offer(t *testing.T) {
	t.Parallel()

	d := NegotiateDeflate(DeflateParams{ClientNoContextTakeover: true, ServerMaxWindowBits: 10})
	offer := d.Offer()

	if !strings.Contains(offer, "permessage-deflate") {
		t.Fatalf("offer missing extension name: %q", offer)
	}
	if !strings.Contains(offer, "client_no_context_takeover") {
		t.Fatalf("offer missing client_no_context_takeover: %q", offer)
	}
	if !strings.Contains(offer, "server_max_window_bits=10") {
		t.Fatalf("offer missing server_max_window_bits: %q", offer)
	}
}

func Test_DeflateExtension_decodeDoesNotEnforceRatio(t *testing.T) {
	t.Parallel()

	// The compression ratio guard lives on Limits.MaxCompressionRatio and is
	// enforced by Connection.Recv after decode (see
	// Test_Connection_RejectsDecompressionBomb in conn_test.go);
	// DeflateExtension.DecodeMessage itself just decompresses.
	d := NegotiateDeflate(DeflateParams{})
	want := []byte(strings.Repeat("a", 10000))

	encoded, _, err := d.EncodeMessage(OpText, want)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	decoded, err := d.DecodeMessage(OpText, true, encoded)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if !bytes.Equal(decoded, want) {
		t.Fatal("expected DecodeMessage to decompress regardless of ratio")
	}
}

func Test_trimLastFourBytesWriter(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	tw := &trimLastFourBytesWriter{w: &out}

	data := []byte("hello world, this is a longer test payload")
	tail := []byte{0, 0, 0xff, 0xff}
	full := append(append([]byte(nil), data...), tail...)

	if _, err := tw.Write(full); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !bytes.Equal(out.Bytes(), data) {
		t.Fatalf("expected trailing 4 bytes stripped, got %q", out.Bytes())
	}
}

func Test_trimLastFourBytesWriter_smallWrites(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	tw := &trimLastFourBytesWriter{w: &out}

	full := []byte("abcdefgh\x00\x00\xff\xff")
	for _, b := range full {
		if _, err := tw.Write([]byte{b}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	if !bytes.Equal(out.Bytes(), []byte("abcdefgh")) {
		t.Fatalf("expected trailing 4 bytes stripped across single-byte writes, got %q", out.Bytes())
	}
}
