// Package transporttest provides a scripted in-memory server for tests of
// code that talks the line protocol.
package transporttest

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/angariumd/dsclient/internal/transport"
)

// Peer plays the server side of a net.Pipe. Scripts run on their own
// goroutine, so failures are reported with assert rather than require.
type Peer struct {
	t    testing.TB
	conn net.Conn
	r    *bufio.Reader
	done chan struct{}

	// Received holds every line the peer read, in order.
	Received []string
}

// NewPair returns a client Conn wired to a fresh Peer.
func NewPair(t testing.TB) (*transport.Conn, *Peer) {
	client, server := net.Pipe()
	p := &Peer{
		t:    t,
		conn: server,
		r:    bufio.NewReader(server),
		done: make(chan struct{}),
	}
	conn := transport.NewConn(client, zaptest.NewLogger(t))
	t.Cleanup(func() {
		conn.Close()
		p.conn.Close()
	})
	return conn, p
}

// Run executes script on a new goroutine and closes the peer side when the
// script returns.
func (p *Peer) Run(script func(p *Peer)) {
	go func() {
		defer close(p.done)
		defer p.conn.Close()
		script(p)
	}()
}

// Wait blocks until the script has finished.
func (p *Peer) Wait() {
	<-p.done
}

// Send writes one line to the client.
func (p *Peer) Send(line string) {
	_, err := io.WriteString(p.conn, line+"\n")
	assert.NoError(p.t, err, "peer send %q", line)
}

// Read returns the next line from the client, or false when the client
// closed the connection.
func (p *Peer) Read() (string, bool) {
	line, err := p.r.ReadString('\n')
	if err != nil {
		return "", false
	}
	line = strings.TrimRight(line, "\r\n")
	p.Received = append(p.Received, line)
	return line, true
}

// Expect reads the next line and checks it equals want.
func (p *Peer) Expect(want string) bool {
	got, ok := p.Read()
	if !assert.True(p.t, ok, "peer expected %q, connection closed", want) {
		return false
	}
	return assert.Equal(p.t, want, got)
}

// ExpectClosed checks the client sends nothing more before closing.
func (p *Peer) ExpectClosed() {
	line, ok := p.Read()
	assert.False(p.t, ok, "expected connection close, got %q", line)
}

// ServeTable answers an already-read RESC request with DATA followed by
// rows, consuming the client's acknowledgments.
func (p *Peer) ServeTable(rows ...string) bool {
	p.Send(transport.MsgData)
	if !p.Expect(transport.CmdOK) {
		return false
	}
	for _, row := range rows {
		p.Send(row)
		if !p.Expect(transport.CmdOK) {
			return false
		}
	}
	p.Send(transport.TableEnd)
	return true
}
