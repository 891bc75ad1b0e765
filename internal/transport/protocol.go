package transport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/angariumd/dsclient/internal/models"
)

// Client commands.
const (
	CmdHelo = "HELO"
	CmdAuth = "AUTH"
	CmdRedy = "REDY"
	CmdQuit = "QUIT"
	CmdSchd = "SCHD"
	CmdResc = "RESC"
	CmdOK   = "OK"
)

// Server messages.
const (
	MsgOK   = "OK"
	MsgData = "DATA"
	MsgJobn = "JOBN"
	MsgJobp = "JOBP"
	MsgJcpl = "JCPL"
	MsgResf = "RESF"
	MsgResr = "RESR"
	MsgNone = "NONE"
	MsgQuit = "QUIT"
	MsgErr  = "ERR"

	// TableEnd terminates a DATA table.
	TableEnd = "."
)

// Fields splits a protocol line on runs of whitespace.
func Fields(line string) []string {
	return strings.Fields(line)
}

// Command returns the leading token of a line, or "" for a blank line.
func Command(line string) string {
	f := strings.Fields(line)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

func AuthLine(user string) string {
	return CmdAuth + " " + user
}

func ScheduleLine(jobID int, serverType string, index int) string {
	return fmt.Sprintf("%s %d %s %d", CmdSchd, jobID, serverType, index)
}

func RescAllLine() string {
	return CmdResc + " All"
}

func RescTypeLine(serverType string) string {
	return CmdResc + " Type " + serverType
}

func RescAvailLine(cores, memory, disk int) string {
	return fmt.Sprintf("%s Avail %d %d %d", CmdResc, cores, memory, disk)
}

// ParseJob reads a JOBN or JOBP line:
// <cmd> <submit time> <id> <est runtime> <cores> <memory> <disk>
func ParseJob(line string) (models.Job, error) {
	fields := Fields(line)
	if len(fields) < 7 {
		return models.Job{}, NewProtocolError("decide", "job with 6 numeric fields", line)
	}
	var v [6]int
	for i := range v {
		n, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return models.Job{}, NewProtocolError("decide", "job with 6 numeric fields", line)
		}
		v[i] = n
	}
	return models.Job{
		SubmitTime: v[0],
		ID:         v[1],
		EstRuntime: v[2],
		Cores:      v[3],
		Memory:     v[4],
		Disk:       v[5],
	}, nil
}
