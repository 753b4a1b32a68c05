// Package wstest provides an in-memory connection pair and echo harness for
// testing wsconn.Connection without a real socket, grounded in the
// teacher's internal/test/wstest (which hijacked an httptest.Server; this
// version wires wsconn.New directly over net.Pipe since there is no HTTP
// upgrade in scope here).
package wstest

import (
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"testing"

	"github.com/coderframe/wsconn"
	"github.com/coderframe/wsconn/internal/errd"
	"github.com/coderframe/wsconn/internal/util"
)

// TestLogger adapts t.Log into the *log.Logger Config.Logger expects, using
// util.WriterFunc the way the teacher's dial_test.go table-driven fixtures
// adapted function values into the interfaces its APIs wanted.
func TestLogger(t testing.TB) *log.Logger {
	w := util.WriterFunc(func(p []byte) (int, error) {
		t.Log(strings.TrimRight(string(p), "\n"))
		return len(p), nil
	})
	return log.New(w, "", 0)
}

// Pipe returns a connected client/server Connection pair backed by
// net.Pipe, configuring roles and extensions from clientCfg/serverCfg.
func Pipe(clientCfg, serverCfg wsconn.Config) (client, server *wsconn.Connection, err error) {
	defer errd.Wrap(&err, "failed to create wstest pipe")

	clientCfg.Role = wsconn.RoleClient
	serverCfg.Role = wsconn.RoleServer

	a, b := net.Pipe()

	client, err = wsconn.New(a, clientCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create client connection: %w", err)
	}
	server, err = wsconn.New(b, serverCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create server connection: %w", err)
	}

	return client, server, nil
}

// EchoLoop echoes every message received on c back to the sender until an
// error occurs.
func EchoLoop(c *wsconn.Connection) error {
	defer c.Close(wsconn.CloseNormalClosure, "")

	for {
		msg, err := c.Recv()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		if s, ok := msg.Text(); ok {
			if err := c.SendText(s); err != nil {
				return err
			}
			continue
		}
		if b, ok := msg.Binary(); ok {
			if err := c.SendBinary(b); err != nil {
				return err
			}
		}
	}
}
