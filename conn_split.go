package wsconn

// Reader is the read half of a split Connection. It is safe to use
// concurrently with the paired Writer but not with another Reader.
type Reader struct {
	c *Connection
}

// Recv reads the next complete message, exactly like Connection.Recv.
func (r *Reader) Recv() (Message, error) {
	return r.c.Recv()
}

// State returns the shared connection state.
func (r *Reader) State() ConnectionState {
	return r.c.State()
}

// Writer is the write half of a split Connection. It is safe to use
// concurrently with the paired Reader but not with another Writer.
type Writer struct {
	c *Connection
}

// SendText sends a text message, exactly like Connection.SendText.
func (w *Writer) SendText(s string) error {
	return w.c.SendText(s)
}

// SendBinary sends a binary message, exactly like Connection.SendBinary.
func (w *Writer) SendBinary(p []byte) error {
	return w.c.SendBinary(p)
}

// Ping sends a ping and waits for the pong, exactly like Connection.Ping.
func (w *Writer) Ping() error {
	return w.c.Ping()
}

// Close sends a close frame and transitions the connection to StateClosing,
// then returns without waiting for the peer's answering close frame. Unlike
// Connection.Close, it does not pump Recv itself: a Writer shares its
// Connection's reader state with a paired Reader, so reading here would
// race whatever goroutine is driving that Reader's own Recv loop, which is
// what will observe the peer's close echo and finish tearing the
// connection down (or the deadline from cfg.CloseHandshakeTimeout will).
func (w *Writer) Close(code CloseCode, reason string) error {
	writeErr, alreadyClosing := w.c.initiateClose(code, reason)
	if alreadyClosing {
		<-w.c.closed
		return w.c.closeErr
	}
	return writeErr
}

// State returns the shared connection state.
func (w *Writer) State() ConnectionState {
	return w.c.State()
}
