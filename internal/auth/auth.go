package auth

import (
	"context"
	"os"
	"os/user"

	"github.com/angariumd/dsclient/internal/transport"
)

// Conn is the part of the session connection the handshake needs.
type Conn interface {
	Request(ctx context.Context, line string) (string, error)
	Send(ctx context.Context, line string) error
}

// Handshake greets the server and identifies as user. The server's answer
// to AUTH is left unread; it is the acknowledgment the session loop waits
// for before its first REDY.
func Handshake(ctx context.Context, conn Conn, userName string) error {
	reply, err := conn.Request(ctx, transport.CmdHelo)
	if err != nil {
		return err
	}
	if reply != transport.MsgOK {
		return transport.NewProtocolError("handshake", transport.MsgOK, reply)
	}
	return conn.Send(ctx, transport.AuthLine(userName))
}

// DefaultUser is the name sent with AUTH when none is configured: the
// login name of the current user, then $USER, then "dsclient".
func DefaultUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "dsclient"
}
