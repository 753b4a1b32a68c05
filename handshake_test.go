package wsconn

import "testing"

// Test_AcceptKey_rfcExample uses the literal example from RFC 6455 section
// 1.3: a Sec-WebSocket-Key of "dGhlIHNhbXBsZSBub25jZQ==" must derive the
// Sec-WebSocket-Accept value "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=".
func Test_AcceptKey_rfcExample(t *testing.T) {
	t.Parallel()

	got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("AcceptKey() = %q, want %q", got, want)
	}
}

func Test_ValidUpgradeTokens(t *testing.T) {
	t.Parallel()

	if !ValidUpgradeTokens("Upgrade", "websocket") {
		t.Fatal("expected canonical header values to validate")
	}
	if !ValidUpgradeTokens("keep-alive, Upgrade", "WebSocket") {
		t.Fatal("expected case-insensitive, multi-token Connection header to validate")
	}
	if ValidUpgradeTokens("keep-alive", "websocket") {
		t.Fatal("expected missing Upgrade token in Connection header to fail")
	}
	if ValidUpgradeTokens("Upgrade", "h2c") {
		t.Fatal("expected non-websocket Upgrade header to fail")
	}
}

func Test_BuildExtensionOffer(t *testing.T) {
	t.Parallel()

	d := NegotiateDeflate(DeflateParams{})
	offer := BuildExtensionOffer([]Extension{d})
	if offer != d.Offer() {
		t.Fatalf("BuildExtensionOffer() = %q, want %q", offer, d.Offer())
	}
}

func Test_BuildExtensionOffer_multiple(t *testing.T) {
	t.Parallel()

	a := stubExtension{name: "ext-a"}
	b := stubExtension{name: "ext-b"}
	offer := BuildExtensionOffer([]Extension{a, b})
	want := "ext-a, ext-b"
	if offer != want {
		t.Fatalf("BuildExtensionOffer() = %q, want %q", offer, want)
	}
}

func Test_ParseNegotiatedExtension(t *testing.T) {
	t.Parallel()

	d := NegotiateDeflate(DeflateParams{})
	if !ParseNegotiatedExtension("permessage-deflate; client_no_context_takeover", d) {
		t.Fatal("expected to find permessage-deflate in the negotiated header")
	}
	if ParseNegotiatedExtension("some-other-extension", d) {
		t.Fatal("expected not to find permessage-deflate when absent")
	}
}
