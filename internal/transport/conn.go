package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Conn is a lock-step, line oriented session with the job-feed server.
// Every Send is expected to be answered by exactly one line before the
// next request; Conn never pipelines.
type Conn struct {
	conn        net.Conn
	r           *bufio.Reader
	w           *bufio.Writer
	logger      *zap.Logger
	readTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established connection. A nil logger uses the global one.
func NewConn(c net.Conn, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = log.L()
	}
	return &Conn{
		conn:   c,
		r:      bufio.NewReader(c),
		w:      bufio.NewWriter(c),
		logger: logger,
	}
}

// SetReadTimeout bounds how long Receive waits for a line. Zero disables it.
func (c *Conn) SetReadTimeout(d time.Duration) {
	c.readTimeout = d
}

// Send writes one line and flushes it to the peer.
func (c *Conn) Send(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return newTransportError("write", err)
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return newTransportError("write", err)
	}
	if _, err := c.w.WriteString(line + "\n"); err != nil {
		return newTransportError("write", err)
	}
	if err := c.w.Flush(); err != nil {
		return newTransportError("write", err)
	}
	c.logger.Debug("SENT " + line)
	return nil
}

// Receive blocks until one full line arrives and returns it without the
// line terminator.
func (c *Conn) Receive(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", newTransportError("read", err)
	}
	if err := c.conn.SetReadDeadline(c.readDeadline(ctx)); err != nil {
		return "", newTransportError("read", err)
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		// A final line without terminator is still a line.
		if err == io.EOF && line != "" {
			err = nil
		} else {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return "", newTransportError("read", err)
		}
	}
	line = strings.TrimRight(line, "\r\n")
	c.logger.Debug("RCVD " + line)
	return line, nil
}

func (c *Conn) readDeadline(ctx context.Context) time.Time {
	deadline, ok := ctx.Deadline()
	if c.readTimeout > 0 {
		t := time.Now().Add(c.readTimeout)
		if !ok || t.Before(deadline) {
			return t
		}
	}
	if ok {
		return deadline
	}
	return time.Time{}
}

// Request sends a line and waits for the single reply line.
func (c *Conn) Request(ctx context.Context, line string) (string, error) {
	if err := c.Send(ctx, line); err != nil {
		return "", err
	}
	return c.Receive(ctx)
}

// DrainTable reads table rows until the "." terminator, acknowledging each
// row with OK so the server releases the next one. The terminator itself is
// not acknowledged.
func (c *Conn) DrainTable(ctx context.Context) ([][]string, error) {
	var rows [][]string
	for {
		line, err := c.Receive(ctx)
		if err != nil {
			return nil, err
		}
		if line == TableEnd {
			return rows, nil
		}
		rows = append(rows, Fields(line))
		if err := c.Send(ctx, CmdOK); err != nil {
			return nil, err
		}
	}
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil {
			c.closeErr = newTransportError("close", err)
		}
	})
	return c.closeErr
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
