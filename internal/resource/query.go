package resource

import (
	"context"
	"strconv"
	"strings"

	"github.com/angariumd/dsclient/internal/catalog"
	"github.com/angariumd/dsclient/internal/models"
	"github.com/angariumd/dsclient/internal/transport"
)

// Querier asks the server for live resource state. An empty result is not
// an error.
type Querier interface {
	All(ctx context.Context) ([]models.ResourceRecord, error)
	ByType(ctx context.Context, serverType string) ([]models.ResourceRecord, error)
	Available(ctx context.Context, cores, memory, disk int) ([]models.ResourceRecord, error)
}

// Conn is the part of transport.Conn a Query needs.
type Conn interface {
	Request(ctx context.Context, line string) (string, error)
	Send(ctx context.Context, line string) error
	DrainTable(ctx context.Context) ([][]string, error)
}

// Query issues RESC requests over a session connection.
type Query struct {
	conn    Conn
	catalog *catalog.Catalog
}

// NewQuery returns a Query over conn. When cat is non-nil every reported
// server type must exist in it.
func NewQuery(conn Conn, cat *catalog.Catalog) *Query {
	return &Query{conn: conn, catalog: cat}
}

func (q *Query) All(ctx context.Context) ([]models.ResourceRecord, error) {
	return q.fetch(ctx, transport.RescAllLine())
}

func (q *Query) ByType(ctx context.Context, serverType string) ([]models.ResourceRecord, error) {
	return q.fetch(ctx, transport.RescTypeLine(serverType))
}

func (q *Query) Available(ctx context.Context, cores, memory, disk int) ([]models.ResourceRecord, error) {
	return q.fetch(ctx, transport.RescAvailLine(cores, memory, disk))
}

func (q *Query) fetch(ctx context.Context, request string) ([]models.ResourceRecord, error) {
	reply, err := q.conn.Request(ctx, request)
	if err != nil {
		return nil, err
	}
	switch reply {
	case transport.TableEnd:
		return nil, nil
	case transport.MsgData:
	default:
		return nil, transport.NewProtocolError("resource query", transport.MsgData, reply)
	}
	if err := q.conn.Send(ctx, transport.CmdOK); err != nil {
		return nil, err
	}

	rows, err := q.conn.DrainTable(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]models.ResourceRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := ParseRecord(row)
		if err != nil {
			return nil, err
		}
		if q.catalog != nil {
			if _, ok := q.catalog.Lookup(rec.Type); !ok {
				return nil, transport.NewProtocolError("resource query", "known server type", rec.Type)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

const recordFields = 7

// ParseRecord decodes one table row: type, index, state, available time,
// cores, memory, disk. Trailing fields are ignored.
func ParseRecord(fields []string) (models.ResourceRecord, error) {
	if len(fields) < recordFields {
		return models.ResourceRecord{}, transport.NewProtocolError("resource row",
			strconv.Itoa(recordFields)+" fields", strings.Join(fields, " "))
	}
	state, err := models.ParseServerState(fields[2])
	if err != nil {
		return models.ResourceRecord{}, transport.NewProtocolError("resource row", "server state", fields[2])
	}
	var ints [4]int
	for i, f := range fields[3:recordFields] {
		if ints[i], err = strconv.Atoi(f); err != nil {
			return models.ResourceRecord{}, transport.NewProtocolError("resource row", "integer", f)
		}
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return models.ResourceRecord{}, transport.NewProtocolError("resource row", "server index", fields[1])
	}
	return models.ResourceRecord{
		Type:          fields[0],
		ID:            id,
		State:         state,
		AvailableTime: ints[0],
		Cores:         ints[1],
		Memory:        ints[2],
		Disk:          ints[3],
	}, nil
}
