package wsconn

import (
	"bytes"
	"strings"
	"testing"
)

func Test_CloseCode_ValidWire(t *testing.T) {
	t.Parallel()

	for _, c := range []CloseCode{CloseNormalClosure, CloseGoingAway, CloseProtocolError, 3000, 4999} {
		if !c.ValidWire() {
			t.Fatalf("%v should be valid on the wire", c)
		}
	}
	for _, c := range []CloseCode{closeReserved1004, CloseNoStatusRcvd, closeAbnormalClosure, closeTLSHandshake, 2999, 5000, 999} {
		if c.ValidWire() {
			t.Fatalf("%v should not be valid on the wire", c)
		}
	}
}

func Test_CloseCode_ValidWire_excludesServiceCodes(t *testing.T) {
	t.Parallel()

	for _, c := range []CloseCode{CloseServiceRestart, CloseTryAgainLater, CloseBadGateway} {
		if c.ValidWire() {
			t.Fatalf("%v should not be valid on the wire per this package's close-code policy", c)
		}
	}
}

func Test_CloseFrame_MarshalPayload_empty(t *testing.T) {
	t.Parallel()

	p, err := CloseFrame{}.MarshalPayload()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil payload for zero close code, got %v", p)
	}
}

func Test_CloseFrame_MarshalPayload_withReason(t *testing.T) {
	t.Parallel()

	cf := CloseFrame{Code: CloseNormalClosure, Reason: "bye"}
	p, err := cf.MarshalPayload()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := append([]byte{0x03, 0xe8}, "bye"...)
	if !bytes.Equal(p, want) {
		t.Fatalf("got % x, want % x", p, want)
	}
}

func Test_CloseFrame_MarshalPayload_rejectsInvalidCode(t *testing.T) {
	t.Parallel()

	_, err := CloseFrame{Code: CloseNoStatusRcvd}.MarshalPayload()
	if err == nil {
		t.Fatal("expected error marshaling a local-only close code")
	}
}

func Test_CloseFrame_MarshalPayload_rejectsOversizeReason(t *testing.T) {
	t.Parallel()

	cf := CloseFrame{Code: CloseNormalClosure, Reason: strings.Repeat("a", maxCloseReason+1)}
	_, err := cf.MarshalPayload()
	if err == nil {
		t.Fatal("expected error for oversize close reason")
	}
}

func Test_parseClosePayload_empty(t *testing.T) {
	t.Parallel()

	cf, err := parseClosePayload(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cf.Code != CloseNoStatusRcvd {
		t.Fatalf("expected CloseNoStatusRcvd for empty payload, got %v", cf.Code)
	}
}

func Test_parseClosePayload_tooShort(t *testing.T) {
	t.Parallel()

	_, err := parseClosePayload([]byte{0x03})
	if err == nil {
		t.Fatal("expected error for a single-byte close payload")
	}
}

func Test_parseClosePayload_roundTrip(t *testing.T) {
	t.Parallel()

	want := CloseFrame{Code: CloseGoingAway, Reason: "server restarting"}
	p, err := want.MarshalPayload()
	if err != nil {
		t.Fatalf("MarshalPayload: %v", err)
	}

	got, err := parseClosePayload(p)
	if err != nil {
		t.Fatalf("parseClosePayload: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func Test_parseClosePayload_rejectsInvalidCode(t *testing.T) {
	t.Parallel()

	_, err := parseClosePayload([]byte{0x03, 0xec}) // 1004, reserved
	if err == nil {
		t.Fatal("expected error for reserved close code 1004")
	}
}
