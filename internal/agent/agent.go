package agent

import (
	"context"

	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/angariumd/dsclient/internal/auth"
	"github.com/angariumd/dsclient/internal/catalog"
	"github.com/angariumd/dsclient/internal/events"
	"github.com/angariumd/dsclient/internal/models"
	"github.com/angariumd/dsclient/internal/resource"
	"github.com/angariumd/dsclient/internal/scheduler"
	"github.com/angariumd/dsclient/internal/transport"
)

// Agent drives one scheduling session with the job-feed server: handshake,
// catalog load, then one placement decision per job until the server runs
// out of work.
type Agent struct {
	conn        *transport.Conn
	policy      scheduler.Policy
	user        string
	catalogPath string
	logger      *zap.Logger
	events      *events.Recorder
}

func NewAgent(conn *transport.Conn, policy scheduler.Policy, user, catalogPath string, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = log.L()
	}
	return &Agent{
		conn:        conn,
		policy:      policy,
		user:        user,
		catalogPath: catalogPath,
		logger:      logger,
		events:      events.New(),
	}
}

// Events exposes what happened during the session.
func (a *Agent) Events() *events.Recorder {
	return a.events
}

// Run executes the session. It returns nil once the server has
// acknowledged QUIT; any other outcome is an error and the connection is
// closed either way.
func (a *Agent) Run(ctx context.Context) (err error) {
	defer a.conn.Close()
	// Unblocks a pending read when the caller gives up.
	stop := context.AfterFunc(ctx, func() { a.conn.Close() })
	defer stop()
	defer func() {
		if err != nil && ctx.Err() != nil {
			err = errors.WithStack(ctx.Err())
		}
	}()

	if err := auth.Handshake(ctx, a.conn, a.user); err != nil {
		return err
	}
	a.logger.Info("handshake complete", zap.String("user", a.user), zap.String("algorithm", a.policy.Name()))

	cat, err := catalog.Load(a.catalogPath)
	if err != nil {
		return err
	}
	a.logger.Info("catalog loaded", zap.String("path", a.catalogPath), zap.Int("server-types", cat.Len()))

	query := resource.NewQuery(a.conn, cat)

	// The server acknowledges AUTH and SCHD with OK before the next REDY.
	awaitAck := true
	for {
		if awaitAck {
			line, err := a.conn.Receive(ctx)
			if err != nil {
				return err
			}
			if line != transport.MsgOK {
				return transport.NewProtocolError("await ready", transport.MsgOK, line)
			}
		}

		line, err := a.conn.Request(ctx, transport.CmdRedy)
		if err != nil {
			return err
		}

		switch transport.Command(line) {
		case transport.MsgNone:
			return a.quit(ctx)
		case transport.MsgJobn, transport.MsgJobp:
			job, err := transport.ParseJob(line)
			if err != nil {
				return err
			}
			awaitAck, err = a.schedule(ctx, job, cat, query)
			if err != nil {
				return err
			}
		case transport.MsgJcpl:
			a.events.Emit(events.TypeJobCompleted, nil, models.None, line)
			awaitAck = false
		case transport.MsgResf:
			a.logger.Warn("server failed", zap.String("message", line))
			a.events.Emit(events.TypeServerFailed, nil, models.None, line)
			awaitAck = false
		case transport.MsgResr:
			a.logger.Info("server recovered", zap.String("message", line))
			a.events.Emit(events.TypeServerRecovered, nil, models.None, line)
			awaitAck = false
		default:
			return transport.NewProtocolError("decide", "JOBN, JOBP, JCPL, RESF, RESR or NONE", line)
		}
	}
}

// schedule runs the policy for one job and submits the decision. It
// reports whether a SCHD was sent and so an acknowledgment is due.
func (a *Agent) schedule(ctx context.Context, job models.Job, cat *catalog.Catalog, q resource.Querier) (bool, error) {
	placement, err := a.policy.Decide(ctx, job, cat, q)
	if err != nil {
		return false, err
	}
	jobID := job.ID
	if placement.IsNone() {
		a.logger.Info("no placement for job",
			zap.Int("job", job.ID),
			zap.Int("cores", job.Cores),
			zap.Int("memory", job.Memory),
			zap.Int("disk", job.Disk))
		a.events.Emit(events.TypeJobSkipped, &jobID, placement, "")
		return false, nil
	}

	if err := a.conn.Send(ctx, transport.ScheduleLine(job.ID, placement.Type, placement.Index)); err != nil {
		return false, err
	}
	a.logger.Debug("job scheduled", zap.Int("job", job.ID), zap.Stringer("placement", placement))
	a.events.Emit(events.TypeJobScheduled, &jobID, placement, "")
	return true, nil
}

func (a *Agent) quit(ctx context.Context) error {
	reply, err := a.conn.Request(ctx, transport.CmdQuit)
	if err != nil {
		return err
	}
	if reply != transport.MsgQuit {
		return transport.NewProtocolError("terminate", transport.MsgQuit, reply)
	}
	if err := a.conn.Close(); err != nil {
		return err
	}

	a.events.Emit(events.TypeSessionEnded, nil, models.None, "")
	summary := a.events.Summary()
	fields := []zap.Field{
		zap.Int("scheduled", summary.Scheduled),
		zap.Int("skipped", summary.Skipped),
		zap.Int("completed", summary.Completed),
		zap.Int("server-failures", summary.Failures),
	}
	for _, tc := range summary.PerType {
		fields = append(fields, zap.Int("jobs-on-"+tc.ServerType, tc.Jobs))
	}
	a.logger.Info("session finished", fields...)
	return nil
}
