package transport

import (
	"context"
	"net"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// DialOptions control connection establishment. Retries apply only to the
// initial connect; once connected, every I/O failure is fatal.
type DialOptions struct {
	Timeout       time.Duration
	ReadTimeout   time.Duration
	Retries       int
	RetryInterval time.Duration
	Logger        *zap.Logger
}

// Dial connects to the server at addr and returns a ready Conn.
func Dial(ctx context.Context, addr string, opts DialOptions) (*Conn, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.L()
	}
	dialer := &net.Dialer{Timeout: opts.Timeout}

	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			logger.Warn("dial failed, retrying",
				zap.String("addr", addr),
				zap.Int("attempt", attempt),
				zap.Duration("interval", opts.RetryInterval),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, newTransportError("dial", ctx.Err())
			case <-time.After(opts.RetryInterval):
			}
		}
		c, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		logger.Info("connected", zap.String("addr", addr))
		conn := NewConn(c, logger)
		conn.SetReadTimeout(opts.ReadTimeout)
		return conn, nil
	}
	return nil, newTransportError("dial", lastErr)
}
