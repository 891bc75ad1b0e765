package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/angariumd/dsclient/internal/catalog"
	"github.com/angariumd/dsclient/internal/events"
	"github.com/angariumd/dsclient/internal/scheduler"
	"github.com/angariumd/dsclient/internal/transport"
	"github.com/angariumd/dsclient/internal/transport/transporttest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const systemXML = `<?xml version="1.0" encoding="UTF-8"?>
<system>
<servers>
<server type="Small" limit="2" bootupTime="40" hourlyRate="0.2" coreCount="2" memory="8" disk="100" />
<server type="Large" limit="1" bootupTime="80" hourlyRate="0.8" coreCount="8" memory="8" disk="100" />
</servers>
</system>
`

func writeCatalog(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "ds-system.xml")
	if err := os.WriteFile(path, []byte(systemXML), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newAgent(t *testing.T, conn *transport.Conn, algorithm, catalogPath string) *Agent {
	policy, err := scheduler.New(algorithm)
	require.NoError(t, err)
	return NewAgent(conn, policy, "alice", catalogPath, zaptest.NewLogger(t))
}

// handshake plays the server side of HELO/AUTH and acknowledges AUTH.
func handshake(p *transporttest.Peer) bool {
	if !p.Expect("HELO") {
		return false
	}
	p.Send("OK")
	if !p.Expect("AUTH alice") {
		return false
	}
	p.Send("OK")
	return true
}

// finish ends the session from the server side after a REDY was read.
func finish(p *transporttest.Peer) {
	p.Send("NONE")
	if !p.Expect("QUIT") {
		return
	}
	p.Send("QUIT")
	p.ExpectClosed()
}

func eventTypes(a *Agent) []string {
	var out []string
	for _, e := range a.Events().Events() {
		out = append(out, e.Type)
	}
	return out
}

func TestRun_LargestFirst(t *testing.T) {
	conn, peer := transporttest.NewPair(t)
	peer.Run(func(p *transporttest.Peer) {
		if !handshake(p) || !p.Expect("REDY") {
			return
		}
		p.Send("JOBN 0 1 10 4 4 10")
		if !p.Expect("SCHD 1 Large 0") {
			return
		}
		p.Send("OK")
		if !p.Expect("REDY") {
			return
		}
		finish(p)
	})

	a := newAgent(t, conn, "", writeCatalog(t))
	require.NoError(t, a.Run(context.Background()))
	peer.Wait()

	require.Equal(t, []string{"HELO", "AUTH alice", "REDY", "SCHD 1 Large 0", "REDY", "QUIT"}, peer.Received)
	require.Equal(t, []string{events.TypeJobScheduled, events.TypeSessionEnded}, eventTypes(a))
	summary := a.Events().Summary()
	require.Equal(t, 1, summary.Scheduled)
	require.Equal(t, []events.TypeCount{{ServerType: "Large", Jobs: 1}}, summary.PerType)
}

func TestRun_FirstFitQueriesState(t *testing.T) {
	conn, peer := transporttest.NewPair(t)
	peer.Run(func(p *transporttest.Peer) {
		if !handshake(p) || !p.Expect("REDY") {
			return
		}
		p.Send("JOBN 0 1 10 4 4 10")
		if !p.Expect("RESC Type Large") || !p.ServeTable("Large 0 3 -1 8 8 100") {
			return
		}
		if !p.Expect("SCHD 1 Large 0") {
			return
		}
		p.Send("OK")
		if !p.Expect("REDY") {
			return
		}
		finish(p)
	})

	a := newAgent(t, conn, "ff", writeCatalog(t))
	require.NoError(t, a.Run(context.Background()))
	peer.Wait()
}

func TestRun_SkipAndNotifications(t *testing.T) {
	conn, peer := transporttest.NewPair(t)
	peer.Run(func(p *transporttest.Peer) {
		if !handshake(p) || !p.Expect("REDY") {
			return
		}
		// No type has 64 cores, so the client moves on without SCHD or OK.
		p.Send("JOBN 5 2 10 64 1 1")
		if !p.Expect("REDY") {
			return
		}
		p.Send("JCPL 20 1 Large 0")
		if !p.Expect("REDY") {
			return
		}
		p.Send("RESF Large 0 30")
		if !p.Expect("REDY") {
			return
		}
		p.Send("RESR Large 0 40")
		if !p.Expect("REDY") {
			return
		}
		finish(p)
	})

	a := newAgent(t, conn, "bf", writeCatalog(t))
	require.NoError(t, a.Run(context.Background()))
	peer.Wait()

	require.Equal(t, []string{
		events.TypeJobSkipped,
		events.TypeJobCompleted,
		events.TypeServerFailed,
		events.TypeServerRecovered,
		events.TypeSessionEnded,
	}, eventTypes(a))

	skipped := a.Events().Events()[0]
	require.NotNil(t, skipped.JobID)
	require.Equal(t, 2, *skipped.JobID)
	require.True(t, skipped.Placement.IsNone())

	summary := a.Events().Summary()
	require.Equal(t, 1, summary.Skipped)
	require.Equal(t, 1, summary.Completed)
	require.Equal(t, 1, summary.Failures)
}

func TestRun_JOBPIsScheduledLikeJOBN(t *testing.T) {
	conn, peer := transporttest.NewPair(t)
	peer.Run(func(p *transporttest.Peer) {
		if !handshake(p) || !p.Expect("REDY") {
			return
		}
		p.Send("JOBP 30 9 10 1 1 1")
		if !p.Expect("SCHD 9 Large 0") {
			return
		}
		p.Send("OK")
		if !p.Expect("REDY") {
			return
		}
		finish(p)
	})

	require.NoError(t, newAgent(t, conn, "atl", writeCatalog(t)).Run(context.Background()))
	peer.Wait()
}

func TestRun_HandshakeRejected(t *testing.T) {
	conn, peer := transporttest.NewPair(t)
	peer.Run(func(p *transporttest.Peer) {
		if !p.Expect("HELO") {
			return
		}
		p.Send("ERR")
		p.ExpectClosed()
	})

	err := newAgent(t, conn, "", writeCatalog(t)).Run(context.Background())
	require.True(t, transport.IsProtocolError(err), "%v", err)
	peer.Wait()
	require.Equal(t, []string{"HELO"}, peer.Received)
}

func TestRun_MissingCatalog(t *testing.T) {
	conn, peer := transporttest.NewPair(t)
	peer.Run(func(p *transporttest.Peer) {
		if !p.Expect("HELO") {
			return
		}
		p.Send("OK")
		if !p.Expect("AUTH alice") {
			return
		}
		p.ExpectClosed()
	})

	missing := filepath.Join(t.TempDir(), "ds-system.xml")
	err := newAgent(t, conn, "", missing).Run(context.Background())
	var cfgErr *catalog.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.ErrorIs(t, err, os.ErrNotExist)
	peer.Wait()
}

func TestRun_ProtocolViolations(t *testing.T) {
	cases := []struct {
		name   string
		script func(p *transporttest.Peer)
	}{
		{
			name: "auth not acknowledged",
			script: func(p *transporttest.Peer) {
				if !p.Expect("HELO") {
					return
				}
				p.Send("OK")
				if !p.Expect("AUTH alice") {
					return
				}
				p.Send("ERR: no such user")
				p.ExpectClosed()
			},
		},
		{
			name: "unknown event",
			script: func(p *transporttest.Peer) {
				if !handshake(p) || !p.Expect("REDY") {
					return
				}
				p.Send("WAIT 10")
				p.ExpectClosed()
			},
		},
		{
			name: "truncated job",
			script: func(p *transporttest.Peer) {
				if !handshake(p) || !p.Expect("REDY") {
					return
				}
				p.Send("JOBN 0 1 10")
				p.ExpectClosed()
			},
		},
		{
			name: "schedule not acknowledged",
			script: func(p *transporttest.Peer) {
				if !handshake(p) || !p.Expect("REDY") {
					return
				}
				p.Send("JOBN 0 1 10 1 1 1")
				if !p.Expect("SCHD 1 Large 0") {
					return
				}
				p.Send("ERR: server not found")
				p.ExpectClosed()
			},
		},
		{
			name: "quit not echoed",
			script: func(p *transporttest.Peer) {
				if !handshake(p) || !p.Expect("REDY") {
					return
				}
				p.Send("NONE")
				if !p.Expect("QUIT") {
					return
				}
				p.Send("OK")
				p.ExpectClosed()
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn, peer := transporttest.NewPair(t)
			peer.Run(tc.script)
			a := newAgent(t, conn, "", writeCatalog(t))
			err := a.Run(context.Background())
			require.True(t, transport.IsProtocolError(err), "%v", err)
			peer.Wait()
			require.NotContains(t, eventTypes(a), events.TypeSessionEnded)
		})
	}
}

func TestRun_ServerHangsUp(t *testing.T) {
	conn, peer := transporttest.NewPair(t)
	peer.Run(func(p *transporttest.Peer) {
		if !handshake(p) {
			return
		}
		p.Expect("REDY")
	})

	err := newAgent(t, conn, "", writeCatalog(t)).Run(context.Background())
	require.True(t, transport.IsTransportError(err), "%v", err)
	peer.Wait()
}

func TestRun_Canceled(t *testing.T) {
	conn, peer := transporttest.NewPair(t)
	authed := make(chan struct{})
	peer.Run(func(p *transporttest.Peer) {
		if !p.Expect("HELO") {
			return
		}
		p.Send("OK")
		p.Expect("AUTH alice")
		close(authed)
		p.ExpectClosed()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	a := newAgent(t, conn, "", writeCatalog(t))
	go func() { errCh <- a.Run(ctx) }()

	<-authed
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	peer.Wait()
}
