package wsconn

// MessageKind discriminates the payload carried by a Message.
type MessageKind int

// Message kinds.
const (
	KindText MessageKind = iota
	KindBinary
	KindPing
	KindPong
	KindClose
)

// Message is a fully reassembled WebSocket message: either an application
// message (text/binary) or a control message delivered to the caller
// (close), surfaced as a closed sum type the way the teacher's MessageType
// plus out-of-band CloseError together represent the same information.
type Message struct {
	kind  MessageKind
	data  []byte
	close CloseFrame
}

// Kind reports which accessor below is valid for m.
func (m Message) Kind() MessageKind {
	return m.kind
}

// Text returns m's payload as a string and true if m is a text message.
func (m Message) Text() (string, bool) {
	if m.kind != KindText {
		return "", false
	}
	return string(m.data), true
}

// Binary returns m's payload and true if m is a binary message.
func (m Message) Binary() ([]byte, bool) {
	if m.kind != KindBinary {
		return nil, false
	}
	return m.data, true
}

// Ping returns m's payload and true if m is a ping.
func (m Message) Ping() ([]byte, bool) {
	if m.kind != KindPing {
		return nil, false
	}
	return m.data, true
}

// Pong returns m's payload and true if m is a pong.
func (m Message) Pong() ([]byte, bool) {
	if m.kind != KindPong {
		return nil, false
	}
	return m.data, true
}

// Close returns the peer's close frame and true if m is a close message.
func (m Message) Close() (CloseFrame, bool) {
	if m.kind != KindClose {
		return CloseFrame{}, false
	}
	return m.close, true
}

func messageKindFor(op OpCode) MessageKind {
	if op == OpBinary {
		return KindBinary
	}
	return KindText
}

func textMessage(s string) Message    { return Message{kind: KindText, data: []byte(s)} }
func binaryMessage(p []byte) Message  { return Message{kind: KindBinary, data: p} }
func pingMessage(p []byte) Message    { return Message{kind: KindPing, data: p} }
func pongMessage(p []byte) Message    { return Message{kind: KindPong, data: p} }
func closeMessage(cf CloseFrame) Message {
	return Message{kind: KindClose, close: cf}
}
